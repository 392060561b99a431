package session

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/arloliu/go-stdf/index"
	"github.com/arloliu/go-stdf/internal/util"
	"github.com/arloliu/go-stdf/limit"
	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/stats"
	"github.com/arloliu/go-stdf/stdf"
)

// Result is the data of one test over a DUT selection.
type Result struct {
	Tuple TestTuple
	// Name is the test name, suffixed with " #<pmr>" for an MPR pin.
	Name   string
	Kind   stdf.RecordType
	Limits limit.Limits

	// DUTs holds the selected DUT indices; Flags is aligned to it.
	DUTs  []int
	Flags []stdf.TestFlag
	// Values holds the scaled results aligned to DUTs. It holds TEST_FLG numbers for an FTR and is
	// empty for an MPR pin that could not be resolved.
	Values []float64
	// States holds RTN_STAT of the selected MPR pin aligned to DUTs, -1 where absent.
	States []int

	LogName  string
	PhyName  string
	ChanName string
	VectName string

	Stats stats.Summary

	// Status describes why Values is empty, and Err holds the matching error.
	Status string
	Err    error
}

// FailCount returns the number of failing flags in the selection.
func (r *Result) FailCount() int {
	n := 0
	for _, f := range r.Flags {
		if !f.IsPass() {
			n++
		}
	}

	return n
}

// GetData returns the data of a prepared test over a selection.
//
// GetData never fails: a test that has not been prepared, or an MPR pin that cannot be resolved,
// yields a Result with empty values, NaN statistics, a status message and a typed Err.
func (s *Session) GetData(t TestTuple, sel Selection) *Result {
	id := t.ID()
	nan := math.NaN()
	res := &Result{
		Tuple:  t,
		Name:   t.Name,
		Limits: limit.Limits{Lo: nan, Hi: nan, LoSpec: nan, HiSpec: nan},
		Stats:  stats.NaNSummary(),
	}

	e, ok := s.cache.Load(id)
	if !ok {
		res.Err = stdf.NewLookupError("test "+id.String(), ErrNotPrepared)
		res.Status = fmt.Sprintf("Test %s is not prepared", id)
		s.reportStatus(res.Status)
		return res
	}

	var mask selection.Mask
	if len(sel.DUTs) == 0 {
		mask = s.table.BuildMask(sel.Heads, sel.Sites)
	} else {
		mask = s.table.MaskFromDUTs(sel.DUTs)
	}

	res.Kind = e.data.Kind
	res.Limits = e.limits
	res.DUTs = selection.Select(mask, s.table.DutArray())
	res.Flags = selection.Select(mask, e.data.Flags)

	switch e.data.Kind {
	case stdf.MPR:
		s.selectPin(res, e, mask, sel)
	case stdf.FTR:
		res.Values = selection.Select(mask, e.data.Values)
		res.VectName = e.info.VectNam
	default:
		res.Values = selection.Select(mask, e.data.Values)
	}

	res.Stats = stats.Summarize(res.Limits.Lo, res.Limits.Hi, res.Values)

	return res
}

func (s *Session) selectPin(res *Result, e *entry, mask selection.Mask, sel Selection) {
	pmr := res.Tuple.PMR
	if pmr > 0 {
		res.Name = fmt.Sprintf("%s #%d", res.Tuple.Name, pmr)
	}
	res.Values = []float64{}
	res.States = []int{}

	pos := -1
	if pmr >= 0 && pmr <= math.MaxUint16 {
		pos = slices.Index(e.pins.PMR, uint16(pmr))
	}
	if pos < 0 {
		if pmr != 0 {
			res.Err = stdf.NewLookupError(fmt.Sprintf("PMR %d of test %s", pmr, res.Tuple.ID()), ErrPMRNotFound)
			res.Status = fmt.Sprintf("PMR %d is not found in %s's PMR list", pmr, res.Tuple.ID())
			s.reportStatus(res.Status)
		}
		return
	}
	if pos >= len(e.data.PinValues) && pos >= len(e.data.PinStates) {
		res.Err = stdf.NewLookupError(fmt.Sprintf("PMR %d of test %s", pmr, res.Tuple.ID()), ErrNoPMRData)
		res.Status = fmt.Sprintf("Cannot found test data for PMR %d in MPR test %s", pmr, res.Tuple.ID())
		s.reportStatus(res.Status)
		return
	}

	n := mask.Count()
	if pos < len(e.data.PinValues) {
		res.Values = selection.Select(mask, e.data.PinValues[pos])
	} else {
		res.Values = util.NaNs(n)
	}
	if pos < len(e.data.PinStates) {
		res.States = selection.Select(mask, e.data.PinStates[pos])
	} else {
		res.States = util.Filled(n, -1)
	}

	res.LogName = pinName(e.pins.LogNam, pos)
	res.PhyName = pinName(e.pins.PhyNam, pos)
	res.ChanName = s.channelNames(e.pins, pos, sel)
}

// channelNames joins the channel names of a pin over the selected (head, site) pairs.
func (s *Session) channelNames(pins index.PinNames, pos int, sel Selection) string {
	var keys []selection.HeadSite
	if len(sel.DUTs) == 0 {
		keys = s.table.HeadSites(sel.Heads, sel.Sites)
		slices.SortFunc(keys, selection.CompareHeadSite)
	} else {
		keys = s.table.DUTHeadSites(sel.DUTs)
	}

	var names []string
	for _, hs := range keys {
		if name := pinName(pins.ChanNam[hs], pos); name != "" {
			names = append(names, name)
		}
	}

	return strings.Join(names, ";")
}

func pinName(names []string, pos int) string {
	if pos < len(names) {
		return names[pos]
	}

	return ""
}

// FailState classifies a test for the test list.
type FailState int

const (
	TestPassed FailState = iota
	TestFailed
	CpkFailed
)

func (f FailState) String() string {
	switch f {
	case TestPassed:
		return "testPassed"
	case TestFailed:
		return "testFailed"
	case CpkFailed:
		return "cpkFailed"
	default:
		return fmt.Sprintf("FailState(%d)", int(f))
	}
}

// IsTestFail classifies a test.
//
// A positive fail count from the index fails the test. A negative count, meaning unknown, is
// resolved by reading the test flags. When the Cpk check is enabled, a passing test is read and
// its Cpk on every head and site is compared with the threshold; NaN Cpks are ignored.
func (s *Session) IsTestFail(ctx context.Context, t TestTuple) (FailState, error) {
	id := t.ID()
	count, ok := s.failCounts.Load(id)
	if !ok {
		return TestPassed, stdf.NewLookupError("test "+id.String(), index.ErrTestNotFound)
	}

	checkCpk := s.cfg.CheckCpk()
	flagsChecked := false
	switch {
	case count > 0:
		return TestFailed, nil
	case count == 0:
		if !checkCpk {
			return TestPassed, nil
		}
		flagsChecked = true
	}

	if err := s.PrepareData(ctx, []stdf.TestID{id}, true); err != nil {
		return TestPassed, err
	}
	e, ok := s.cache.Load(id)
	if !ok {
		return TestPassed, stdf.NewLookupError("test "+id.String(), ErrNotPrepared)
	}

	if !flagsChecked {
		for _, f := range e.data.Flags {
			if !f.IsPass() {
				s.failCounts.Store(id, 1)
				return TestFailed, nil
			}
		}
	}
	s.failCounts.Store(id, 0)

	if checkCpk {
		threshold := s.cfg.CpkThreshold()
		for _, head := range s.table.Heads() {
			for _, site := range s.table.Sites() {
				res := s.GetData(t, Selection{Heads: []uint8{head}, Sites: []int{site}})
				if cpk := res.Stats.Cpk; !math.IsNaN(cpk) && cpk < threshold {
					return CpkFailed, nil
				}
			}
		}
	}

	return TestPassed, nil
}
