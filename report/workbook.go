package report

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/arloliu/go-stdf/index"
	"github.com/arloliu/go-stdf/logger"
	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/session"
	"github.com/arloliu/go-stdf/stdf"
	"github.com/xuri/excelize/v2"
)

// Sheet names of an exported workbook.
const (
	SheetFileInfo   = "File Info"
	SheetDUTSummary = "DUT Summary"
	SheetTestData   = "Test Data"
	SheetStatistics = "Statistics"
	SheetBins       = "Bin Summary"
)

var statHeader = []string{
	"Test / Head / Site", "Test Name", "PMR", "Logic Name", "Physical Name", "Channel Name", "Vector Name",
	"Unit", "Low Limit", "High Limit", "Fail Num", "Cpk", "Average", "Median", "St. Dev.", "Min", "Max",
}

// Options selects the content of a report.
type Options struct {
	// Tests lists the tests to export. Empty exports every test with PMR 0.
	Tests []session.TestTuple
	// Heads and Sites select the DUTs. Empty Heads selects every head; empty Sites selects every site.
	Heads []uint8
	Sites []int
	// Logger receives problems with single tests. Defaults to the global logger.
	Logger logger.Logger
}

// Export writes an xlsx report of s to path.
func Export(ctx context.Context, s *session.Session, path string, opts Options) error {
	w, err := newWorkbook(ctx, s, opts)
	if err != nil {
		return err
	}
	defer w.f.Close()

	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	return nil
}

type workbook struct {
	f        *excelize.File
	s        *session.Session
	idx      *index.MemIndex
	opts     Options
	failFill int
	logger   logger.Logger
}

func newWorkbook(ctx context.Context, s *session.Session, opts Options) (*workbook, error) {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if len(opts.Heads) == 0 {
		opts.Heads = s.DutTable().Heads()
	}
	if len(opts.Sites) == 0 {
		opts.Sites = []int{selection.AllSites}
	}
	if len(opts.Tests) == 0 {
		for _, t := range s.Index().Tests() {
			opts.Tests = append(opts.Tests, session.TestTuple{Number: t.ID.Number, Name: t.ID.Name})
		}
	}

	ids := make([]stdf.TestID, 0, len(opts.Tests))
	for _, t := range opts.Tests {
		if id := t.ID(); !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	if err := s.PrepareData(ctx, ids, true); err != nil {
		if ctx.Err() != nil || errors.Is(err, session.ErrSessionClosed) {
			return nil, err
		}
		opts.Logger.Warn("some tests are missing from the report", "error", err)
	}

	w := &workbook{f: excelize.NewFile(), s: s, idx: s.Index(), opts: opts, logger: opts.Logger}
	fill, err := w.f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"CC0000"}, Pattern: 1},
		Font: &excelize.Font{Color: "FFFFFF"},
	})
	if err != nil {
		_ = w.f.Close()
		return nil, err
	}
	w.failFill = fill

	steps := []func() error{w.fileInfo, w.dutSummary, w.testData, w.statistics, w.bins}
	for _, step := range steps {
		if err := step(); err != nil {
			_ = w.f.Close()
			return nil, err
		}
	}
	if err := w.f.DeleteSheet("Sheet1"); err != nil {
		_ = w.f.Close()
		return nil, err
	}

	return w, nil
}

func (w *workbook) sheet(name string) error {
	_, err := w.f.NewSheet(name)
	return err
}

func (w *workbook) setRow(sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}

	return w.f.SetSheetRow(sheet, cell, &values)
}

func toAny[T any](s []T) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}

	return out
}

func (w *workbook) fileInfo() error {
	if err := w.sheet(SheetFileInfo); err != nil {
		return err
	}

	rows := [][]any{
		{"File", w.s.Path()},
		{"Byte Order", w.idx.Endianness().String()},
		{"DUTs", w.s.DutTable().Len()},
		{"Tests", len(w.idx.Tests())},
	}
	if mir := w.idx.MIR(); mir != nil {
		rows = append(rows,
			[]any{stdf.MIRDescriptions["SETUP_T"], mir.SetupT},
			[]any{stdf.MIRDescriptions["START_T"], mir.StartT},
			[]any{stdf.MIRDescriptions["STAT_NUM"], mir.StatNum},
			[]any{stdf.MIRDescriptions["MODE_COD"], string(rune(mir.ModeCod))},
		)
		for i, name := range stdf.MIRTextFields {
			if mir.Text[i] != "" {
				rows = append(rows, []any{stdf.MIRDescriptions[name], mir.Text[i]})
			}
		}
	}

	for i, r := range rows {
		if err := w.setRow(SheetFileInfo, i+1, r); err != nil {
			return err
		}
	}

	return nil
}

func (w *workbook) selectedDUTs() []int {
	return selection.Select(w.s.DutTable().BuildMask(w.opts.Heads, w.opts.Sites), w.s.DutTable().DutArray())
}

func (w *workbook) dutSummary() error {
	if err := w.sheet(SheetDUTSummary); err != nil {
		return err
	}

	header := []any{"DUT", "Part ID", "Head", "Site", "Hardware Bin", "Software Bin", "X", "Y", "Test Time (ms)", "Tests", "Status"}
	if err := w.setRow(SheetDUTSummary, 1, header); err != nil {
		return err
	}

	duts := w.idx.DUTs()
	row := 2
	for _, dut := range w.selectedDUTs() {
		d := duts[dut-1]
		status := "Passed"
		switch {
		case !d.Tested():
			status = "Unknown"
		case d.Failed():
			status = "Failed"
		}
		values := []any{dut, d.PartID, d.Head, d.Site, d.HardBin, d.SoftBin, d.X, d.Y, d.TestTime, d.NumTest, status}
		if err := w.setRow(SheetDUTSummary, row, values); err != nil {
			return err
		}
		if d.Failed() {
			if err := w.styleCell(SheetDUTSummary, len(values), row); err != nil {
				return err
			}
		}
		row++
	}

	return nil
}

func (w *workbook) styleCell(sheet string, col, row int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}

	return w.f.SetCellStyle(sheet, cell, cell, w.failFill)
}

func (w *workbook) testData() error {
	if err := w.sheet(SheetTestData); err != nil {
		return err
	}

	header := []any{"Test Name", "Test Num", "Upper Limit", "Lower Limit", "Unit"}
	header = append(header, toAny(w.selectedDUTs())...)
	if err := w.setRow(SheetTestData, 1, header); err != nil {
		return err
	}

	format := w.s.Config().ValueFormat()
	sel := session.Selection{Heads: w.opts.Heads, Sites: w.opts.Sites}
	for i, t := range w.opts.Tests {
		row := i + 2
		res := w.s.GetData(t, sel)
		if res.Err != nil && res.Status != "" {
			w.logger.Warn("test exported without data", "test", t.ID().String(), "status", res.Status)
		}
		if err := w.setRow(SheetTestData, row, toAny(TestRow(res, format))); err != nil {
			return err
		}
		for col, pass := range PassRow(res) {
			if !pass {
				if err := w.styleCell(SheetTestData, col+1, row); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

func (w *workbook) statistics() error {
	if err := w.sheet(SheetStatistics); err != nil {
		return err
	}
	if err := w.setRow(SheetStatistics, 1, toAny(statHeader)); err != nil {
		return err
	}

	row := 2
	for _, t := range w.opts.Tests {
		for _, head := range w.opts.Heads {
			for _, site := range w.opts.Sites {
				stat := w.s.StatRow(t, head, site)
				if err := w.setRow(SheetStatistics, row, toAny(stat.Strings(true, true))); err != nil {
					return err
				}
				row++
			}
		}
	}

	return nil
}

func (w *workbook) bins() error {
	if err := w.sheet(SheetBins); err != nil {
		return err
	}
	if err := w.setRow(SheetBins, 1, []any{"Bin", "Head / Site", "Number", "Name", "Count", "Percent"}); err != nil {
		return err
	}

	row := 2
	for _, kind := range []stdf.RecordType{stdf.HBR, stdf.SBR} {
		for _, head := range w.opts.Heads {
			for _, site := range w.opts.Sites {
				rows := BinRows(w.idx, kind, head, site)
				for _, r := range rows {
					values := []any{r.Kind, r.Label, r.Num, r.Name, r.Count, fmt.Sprintf("%.1f%%", r.Percent)}
					if err := w.setRow(SheetBins, row, values); err != nil {
						return err
					}
					row++
				}
			}
		}
	}

	return nil
}
