package report

import (
	"fmt"
	"slices"

	"github.com/arloliu/go-stdf/index"
	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/stdf"
)

// BinSource supplies bin counts and names.
type BinSource interface {
	BinStats(head uint8, site int, kind stdf.RecordType) map[uint16]int
	Bin(kind stdf.RecordType, num uint16) (index.Bin, bool)
}

// BinRow is one bin of a bin summary.
type BinRow struct {
	Kind    string
	Label   string
	Num     uint16
	Name    string
	Count   int
	Percent float64
}

// String returns the row as "<name>\nBin<num>: <percent>%", the name omitted when unknown.
func (r BinRow) String() string {
	s := fmt.Sprintf("Bin%d: %.1f%%", r.Num, r.Percent)
	if r.Name != "" {
		return r.Name + "\n" + s
	}

	return s
}

// BinRows returns the non-empty bins of a head and site in ascending bin order. site may be
// selection.AllSites.
func BinRows(src BinSource, kind stdf.RecordType, head uint8, site int) []BinRow {
	stats := src.BinStats(head, site, kind)

	total := 0
	nums := make([]uint16, 0, len(stats))
	for num, cnt := range stats {
		total += cnt
		if cnt > 0 {
			nums = append(nums, num)
		}
	}
	slices.Sort(nums)

	kindName := "Hardware Bin"
	if kind == stdf.SBR {
		kindName = "Software Bin"
	}
	label := fmt.Sprintf("Head%d / Site%d", head, site)
	if site == selection.AllSites {
		label = fmt.Sprintf("Head%d / All Sites", head)
	}

	rows := make([]BinRow, 0, len(nums))
	for _, num := range nums {
		r := BinRow{Kind: kindName, Label: label, Num: num, Count: stats[num]}
		r.Percent = 100 * float64(r.Count) / float64(total)
		if b, ok := src.Bin(kind, num); ok {
			r.Name = b.Name
		}
		rows = append(rows, r)
	}

	return rows
}
