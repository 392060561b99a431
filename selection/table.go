package selection

import (
	"fmt"
	"slices"
	"sort"
)

// NoSite marks a DUT that was not tested under a head.
const NoSite = -1

// AllSites is the site selector that matches every site of the selected heads.
const AllSites = -1

// HeadSite identifies one test site.
type HeadSite struct {
	Head uint8
	Site uint8
}

func (hs HeadSite) String() string {
	return fmt.Sprintf("head %d site %d", hs.Head, hs.Site)
}

// DutTable is the read-only DUT axis of an indexed file.
type DutTable struct {
	dutArray []int
	siteInfo map[uint8][]int
	heads    []uint8
	sites    []int
}

// NewDutTable creates a DutTable. Every siteInfo entry must be as long as dutArray, and dutArray
// must be increasing.
func NewDutTable(dutArray []int, siteInfo map[uint8][]int) (*DutTable, error) {
	for i := 1; i < len(dutArray); i++ {
		if dutArray[i] <= dutArray[i-1] {
			return nil, fmt.Errorf("DUT array is not increasing at position %d", i)
		}
	}

	t := &DutTable{dutArray: dutArray, siteInfo: siteInfo}
	seen := make(map[int]struct{})
	for head, sites := range siteInfo {
		if len(sites) != len(dutArray) {
			return nil, fmt.Errorf("head %d has %d site entries for %d DUTs", head, len(sites), len(dutArray))
		}
		t.heads = append(t.heads, head)
		for _, s := range sites {
			if s == NoSite {
				continue
			}
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				t.sites = append(t.sites, s)
			}
		}
	}
	slices.Sort(t.heads)
	slices.Sort(t.sites)

	return t, nil
}

// Len returns the length of the DUT axis.
func (t *DutTable) Len() int { return len(t.dutArray) }

// DutArray returns the DUT indices. The slice must not be modified.
func (t *DutTable) DutArray() []int { return t.dutArray }

// SiteInfo returns the site per DUT position under head, or nil for an unknown head.
// The slice must not be modified.
func (t *DutTable) SiteInfo(head uint8) []int { return t.siteInfo[head] }

// Heads returns the heads present in the file in ascending order.
func (t *DutTable) Heads() []uint8 { return t.heads }

// Sites returns the sites present under any head in ascending order.
func (t *DutTable) Sites() []int { return t.sites }

// Position returns the axis position of a DUT index.
func (t *DutTable) Position(dut int) (int, bool) {
	pos := sort.SearchInts(t.dutArray, dut)
	if pos < len(t.dutArray) && t.dutArray[pos] == dut {
		return pos, true
	}

	return 0, false
}

// Locate returns the head and site that tested a DUT.
func (t *DutTable) Locate(dut int) (HeadSite, bool) {
	pos, ok := t.Position(dut)
	if !ok {
		return HeadSite{}, false
	}
	for _, head := range t.heads {
		if s := t.siteInfo[head][pos]; s != NoSite {
			return HeadSite{Head: head, Site: uint8(s)}, true //nolint:gosec
		}
	}

	return HeadSite{}, false
}

// BuildMask selects the DUTs tested under any of heads at any of sites.
// AllSites in sites selects every site of the given heads.
func (t *DutTable) BuildMask(heads []uint8, sites []int) Mask {
	m := NewMask(t.Len())
	all := slices.Contains(sites, AllSites)

	for _, head := range heads {
		info, ok := t.siteInfo[head]
		if !ok {
			continue
		}
		for pos, s := range info {
			if s == NoSite {
				continue
			}
			if all || slices.Contains(sites, s) {
				m.Set(pos)
			}
		}
	}

	return m
}

// MaskFromDUTs selects the given DUT indices. Unknown indices are ignored.
func (t *DutTable) MaskFromDUTs(duts []int) Mask {
	m := NewMask(t.Len())
	for _, dut := range duts {
		if pos, ok := t.Position(dut); ok {
			m.Set(pos)
		}
	}

	return m
}

// HeadSites returns the (head, site) pairs addressed by a head and site selection, expanding
// AllSites to the sites present in the file.
func (t *DutTable) HeadSites(heads []uint8, sites []int) []HeadSite {
	if slices.Contains(sites, AllSites) {
		sites = t.sites
	}

	out := make([]HeadSite, 0, len(heads)*len(sites))
	for _, h := range heads {
		for _, s := range sites {
			if s < 0 || s > 255 {
				continue
			}
			hs := HeadSite{Head: h, Site: uint8(s)}
			if !slices.Contains(out, hs) {
				out = append(out, hs)
			}
		}
	}

	return out
}

// DUTHeadSites returns the (head, site) pairs that tested the given DUTs in ascending order.
func (t *DutTable) DUTHeadSites(duts []int) []HeadSite {
	var out []HeadSite
	for _, dut := range duts {
		if hs, ok := t.Locate(dut); ok && !slices.Contains(out, hs) {
			out = append(out, hs)
		}
	}
	slices.SortFunc(out, CompareHeadSite)

	return out
}

// CompareHeadSite orders pairs by head, then by site.
func CompareHeadSite(a, b HeadSite) int {
	if a.Head != b.Head {
		return int(a.Head) - int(b.Head)
	}

	return int(a.Site) - int(b.Site)
}
