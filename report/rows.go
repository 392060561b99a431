// Package report formats test data for tables and writes xlsx reports.
package report

import (
	"fmt"
	"math"
	"strings"

	"github.com/arloliu/go-stdf/session"
	"github.com/arloliu/go-stdf/stdf"
)

// LeadColumns is the number of descriptive columns before the per-DUT cells of a TestRow.
const LeadColumns = 5

// TestRow returns the name, number, high limit, low limit and unit of a test followed by one
// formatted cell per selected DUT.
//
// PTR cells hold the value and FTR cells the test flag. An MPR pin without values falls back to
// the test flags. Untested DUTs read "Not Tested".
func TestRow(res *session.Result, format string) []string {
	row := make([]string, 0, LeadColumns+len(res.Flags))
	row = append(row,
		res.Name,
		fmt.Sprintf("%d", res.Tuple.Number),
		session.FormatLimit(format, res.Limits.Hi),
		session.FormatLimit(format, res.Limits.Lo),
		res.Limits.Unit,
	)

	switch {
	case res.Kind == stdf.FTR:
		for _, v := range res.Values {
			if math.IsNaN(v) {
				row = append(row, "Not Tested")
			} else {
				row = append(row, fmt.Sprintf("Test Flag: %d", int(v)))
			}
		}
	case res.Kind == stdf.MPR && len(res.Values) == 0:
		for _, f := range res.Flags {
			if !f.Tested() {
				row = append(row, "Not Tested")
			} else {
				row = append(row, fmt.Sprintf("Test Flag: %d", f))
			}
		}
	default:
		for _, v := range res.Values {
			if math.IsNaN(v) {
				row = append(row, "Not Tested")
			} else {
				row = append(row, fmt.Sprintf(format, v))
			}
		}
	}

	return row
}

// PassRow returns the pass state of every cell of TestRow. Descriptive columns always pass.
func PassRow(res *session.Result) []bool {
	row := make([]bool, LeadColumns, LeadColumns+len(res.Flags))
	for i := range row {
		row[i] = true
	}
	for _, f := range res.Flags {
		row = append(row, f.IsPass())
	}

	return row
}

// DataTips returns a description of each DUT cell: the flag bits, preceded by the return state
// for an MPR pin.
func DataTips(res *session.Result) []string {
	tips := make([]string, len(res.Flags))
	withStates := res.Kind == stdf.MPR && len(res.States) == len(res.Flags)
	for i, f := range res.Flags {
		lines := stdf.TestFlagInfo(f)
		if withStates {
			lines = append([]string{stdf.ReturnStateInfo(res.States[i])}, lines...)
		}
		tips[i] = strings.Join(lines, "\n")
	}

	return tips
}
