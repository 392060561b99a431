package index

import (
	"fmt"
	"maps"

	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/stdf"
)

// snapshotVersion changes whenever Snapshot changes incompatibly.
const snapshotVersion = 1

// Snapshot is the serialisable content of a MemIndex.
type Snapshot struct {
	Version      int
	Order        stdf.Endianness
	MIR          *stdf.MIRRecord
	WCR          *stdf.WCRRecord
	DutArray     []int
	SiteInfo     map[uint8][]int
	Tests        []*OffsetRecord
	Pins         []Pin
	Channels     []Channel
	Bins         []Bin
	DUTs         []DUT
	Wafers       []Wafer
	RecordCounts map[stdf.RecordType]int
}

// MemIndex is an in-memory Source. It is read-only once built and safe for concurrent use.
type MemIndex struct {
	snap     *Snapshot
	table    *selection.DutTable
	tests    map[stdf.TestID]*OffsetRecord
	pins     map[uint16]Pin
	channels map[selection.HeadSite]map[uint16]string
	bins     map[stdf.RecordType]map[uint16]Bin
}

var _ Source = (*MemIndex)(nil)

// FromSnapshot builds a MemIndex from a snapshot. The snapshot must not be modified afterwards.
func FromSnapshot(s *Snapshot) (*MemIndex, error) {
	if s.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported index snapshot version %d", s.Version)
	}

	table, err := selection.NewDutTable(s.DutArray, s.SiteInfo)
	if err != nil {
		return nil, err
	}

	m := &MemIndex{
		snap:     s,
		table:    table,
		tests:    make(map[stdf.TestID]*OffsetRecord, len(s.Tests)),
		pins:     make(map[uint16]Pin, len(s.Pins)),
		channels: make(map[selection.HeadSite]map[uint16]string),
		bins:     make(map[stdf.RecordType]map[uint16]Bin),
	}
	for _, t := range s.Tests {
		if t.NumDUTs() != table.Len() {
			return nil, fmt.Errorf("test %s has %d offsets for %d DUTs", t.ID, t.NumDUTs(), table.Len())
		}
		m.tests[t.ID] = t
	}
	for _, p := range s.Pins {
		m.pins[p.Index] = p
	}
	for _, c := range s.Channels {
		hs := selection.HeadSite{Head: c.Head, Site: c.Site}
		if m.channels[hs] == nil {
			m.channels[hs] = make(map[uint16]string)
		}
		m.channels[hs][c.Index] = c.Name
	}
	for _, b := range s.Bins {
		if m.bins[b.Kind] == nil {
			m.bins[b.Kind] = make(map[uint16]Bin)
		}
		m.bins[b.Kind][b.Num] = b
	}

	return m, nil
}

// Snapshot returns the serialisable content of the index. It must not be modified.
func (m *MemIndex) Snapshot() *Snapshot { return m.snap }

// TestInfo implements Source. The returned record is shared and must not be modified.
func (m *MemIndex) TestInfo(id stdf.TestID) (*OffsetRecord, error) {
	t, ok := m.tests[id]
	if !ok {
		return nil, stdf.NewLookupError("test "+id.String(), ErrTestNotFound)
	}

	return t, nil
}

// PinNames implements Source.
func (m *MemIndex) PinNames(id stdf.TestID, role PinRole) (PinNames, error) {
	t, err := m.TestInfo(id)
	if err != nil {
		return PinNames{}, err
	}

	var indices []uint16
	switch role {
	case RolePin:
		indices = t.RtnIndx
	case RolePgm:
		indices = t.PgmIndx
	default:
		return PinNames{}, stdf.NewLookupError(fmt.Sprintf("pin role %q", role), ErrUnknownPinRole)
	}

	names := PinNames{
		PMR:     indices,
		LogNam:  make([]string, len(indices)),
		PhyNam:  make([]string, len(indices)),
		ChanNam: make(map[selection.HeadSite][]string, len(m.channels)),
	}
	for i, idx := range indices {
		p := m.pins[idx]
		names.LogNam[i] = p.LogNam
		names.PhyNam[i] = p.PhyNam
	}
	for hs, chans := range m.channels {
		list := make([]string, len(indices))
		for i, idx := range indices {
			list[i] = chans[idx]
		}
		names.ChanNam[hs] = list
	}

	return names, nil
}

// BinStats implements Source.
func (m *MemIndex) BinStats(head uint8, site int, kind stdf.RecordType) map[uint16]int {
	out := make(map[uint16]int)
	for _, d := range m.snap.DUTs {
		if !d.Tested() || d.Head != head || (site != selection.AllSites && int(d.Site) != site) {
			continue
		}
		switch kind {
		case stdf.HBR:
			out[d.HardBin]++
		case stdf.SBR:
			out[d.SoftBin]++
		}
	}

	return out
}

// DutTable implements Source.
func (m *MemIndex) DutTable() *selection.DutTable { return m.table }

// Overrides implements Source.
func (m *MemIndex) Overrides(id stdf.TestID) (Overrides, bool) {
	t, ok := m.tests[id]
	if !ok || (len(t.LoOverrides) == 0 && len(t.HiOverrides) == 0) {
		return Overrides{}, false
	}

	return Overrides{Lo: t.LoOverrides, Hi: t.HiOverrides}, true
}

// TestFailCount implements Source.
func (m *MemIndex) TestFailCount() map[stdf.TestID]int {
	out := make(map[stdf.TestID]int, len(m.tests))
	for id, t := range m.tests {
		out[id] = t.FailCount
	}

	return out
}

// Endianness implements Source.
func (m *MemIndex) Endianness() stdf.Endianness { return m.snap.Order }

// Tests returns the tests in the order of their first occurrence.
func (m *MemIndex) Tests() []*OffsetRecord { return m.snap.Tests }

// MIR returns the Master Information Record, or nil.
func (m *MemIndex) MIR() *stdf.MIRRecord { return m.snap.MIR }

// WCR returns the Wafer Configuration Record, or nil.
func (m *MemIndex) WCR() *stdf.WCRRecord { return m.snap.WCR }

// DUTs returns the DUT summaries in DUT index order.
func (m *MemIndex) DUTs() []DUT { return m.snap.DUTs }

// Wafers returns the wafers in file order.
func (m *MemIndex) Wafers() []Wafer { return m.snap.Wafers }

// Bin returns the name and class of a bin.
func (m *MemIndex) Bin(kind stdf.RecordType, num uint16) (Bin, bool) {
	b, ok := m.bins[kind][num]
	return b, ok
}

// RecordCounts returns the number of records per record type.
func (m *MemIndex) RecordCounts() map[stdf.RecordType]int {
	return maps.Clone(m.snap.RecordCounts)
}
