package session

import (
	"fmt"
	"math"

	"github.com/arloliu/go-stdf/dynlimit"
	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/stdf"
)

// Series is the trend line of a Result.
type Series struct {
	// NoData is set when there is nothing to draw.
	NoData bool
	// FlagAxis is set when Y holds test flags instead of values.
	FlagAxis bool

	// X holds the DUT indices of the points and Y their values, NaN points removed.
	X []int
	Y []float64

	HasDynLo bool
	DynLo    []float64
	HasDynHi bool
	DynHi    []float64

	// LimitMin and LimitMax span the static and dynamic limits, NaN when absent.
	LimitMin float64
	LimitMax float64
}

// ChartSeries returns the trend line of res.
//
// PTR and FTR results have no data when every value is NaN or every DUT is untested. An MPR result
// has no data only when both hold; an MPR pin with flags but no values is drawn from its flags,
// untested DUTs removed.
func (s *Session) ChartSeries(res *Result) Series {
	out := Series{LimitMin: res.Limits.Lo, LimitMax: res.Limits.Hi}

	dataInvalid := allNaN(res.Values)
	testInvalid := true
	for _, f := range res.Flags {
		if f.Tested() {
			testInvalid = false
			break
		}
	}

	isMPR := res.Kind == stdf.MPR
	if (isMPR && dataInvalid && testInvalid) || (!isMPR && (dataInvalid || testInvalid)) {
		out.NoData = true
		return out
	}

	y := res.Values
	if isMPR && dataInvalid {
		y = make([]float64, len(res.Flags))
		for i, f := range res.Flags {
			if f.Tested() {
				y[i] = float64(f)
			} else {
				y[i] = math.NaN()
			}
		}
	}
	out.FlagAxis = res.Kind == stdf.FTR || (isMPR && dataInvalid)

	for i, v := range y {
		if !math.IsNaN(v) && i < len(res.DUTs) {
			out.X = append(out.X, res.DUTs[i])
			out.Y = append(out.Y, v)
		}
	}

	out.HasDynLo, out.DynLo, out.HasDynHi, out.DynHi = s.dyn.Limits(res.Tuple.ID(), out.X, res.Limits.Lo, res.Limits.Hi, res.Limits.Scale)
	out.LimitMin, out.LimitMax = dynlimit.Envelope(res.Limits.Lo, res.Limits.Hi, out.DynLo, out.DynHi)

	return out
}

func allNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}

	return true
}

// ValueFormat returns the printf verb built from the precision and notation settings.
func (cfg *Config) ValueFormat() string {
	return fmt.Sprintf("%%.%d%c", cfg.Precision(), cfg.Notation())
}

// StatRow is one line of the statistics table of a test on a head and site.
type StatRow struct {
	Label     string
	Name      string
	PMR       string
	LogName   string
	PhyName   string
	ChanName  string
	VectName  string
	Unit      string
	Lo        string
	Hi        string
	FailCount string
	Cpk       string
	Mean      string
	Median    string
	SDev      string
	Min       string
	Max       string
}

// StatRow formats the statistics of a test on one head and site. site may be
// selection.AllSites.
func (s *Session) StatRow(t TestTuple, head uint8, site int) StatRow {
	res := s.GetData(t, Selection{Heads: []uint8{head}, Sites: []int{site}})
	format := s.cfg.ValueFormat()

	siteLabel := fmt.Sprintf("Site%d", site)
	if site == selection.AllSites {
		siteLabel = "All Sites"
	}

	row := StatRow{
		Label:     fmt.Sprintf("%d / Head %d / %s", t.Number, head, siteLabel),
		Name:      t.Name,
		Unit:      res.Limits.Unit,
		Lo:        FormatLimit(format, res.Limits.Lo),
		Hi:        FormatLimit(format, res.Limits.Hi),
		FailCount: fmt.Sprintf("%d", res.FailCount()),
		Cpk:       FormatCpk(format, res.Stats.Cpk),
		Mean:      fmt.Sprintf(format, res.Stats.Mean),
		Median:    fmt.Sprintf(format, res.Stats.Median),
		SDev:      fmt.Sprintf(format, res.Stats.SDev),
		Min:       fmt.Sprintf(format, res.Stats.Min),
		Max:       fmt.Sprintf(format, res.Stats.Max),
	}
	switch res.Kind {
	case stdf.MPR:
		row.PMR = fmt.Sprintf("%d", t.PMR)
		row.LogName, row.PhyName, row.ChanName = res.LogName, res.PhyName, res.ChanName
	case stdf.FTR:
		row.VectName = res.VectName
	}

	return row
}

// Strings returns the columns of the row. The MPR columns follow the name when withMPR is set,
// then the FTR vector column when withFTR is set.
func (r StatRow) Strings(withMPR, withFTR bool) []string {
	out := []string{r.Label, r.Name}
	if withMPR {
		out = append(out, r.PMR, r.LogName, r.PhyName, r.ChanName)
	}
	if withFTR {
		out = append(out, r.VectName)
	}

	return append(out, r.Unit, r.Lo, r.Hi, r.FailCount, r.Cpk, r.Mean, r.Median, r.SDev, r.Min, r.Max)
}

// FormatLimit formats a limit, "N/A" when it is NaN.
func FormatLimit(format string, v float64) string {
	if math.IsNaN(v) {
		return "N/A"
	}

	return fmt.Sprintf(format, v)
}

// FormatCpk formats a Cpk, "∞" when it is infinite and "N/A" when it is NaN.
func FormatCpk(format string, v float64) string {
	if math.IsInf(v, 1) {
		return "∞"
	}

	return FormatLimit(format, v)
}
