package index

import (
	"errors"

	"github.com/arloliu/go-stdf/limit"
	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/stdf"
)

var (
	// ErrTestNotFound indicates a test id that does not occur in the file.
	ErrTestNotFound = errors.New("test not found")

	// ErrUnknownPinRole indicates a pin role other than RTN or PGM.
	ErrUnknownPinRole = errors.New("unknown pin role")
)

// PinRole selects the pin list of a test: RTN_INDX or PGM_INDX.
type PinRole string

const (
	RolePin PinRole = "RTN"
	RolePgm PinRole = "PGM"
)

// OffsetRecord describes where the per-DUT records of one test are stored and how to interpret
// them. The limits, scale, unit and OPT_FLAG come from the first record of the test.
type OffsetRecord struct {
	stdf.TestLocation

	Limits  limit.Raw
	OptFlag uint8
	RtnIndx []uint16
	PgmIndx []uint16
	VectNam string
	// FailCount is the number of DUTs that failed the test. It comes from the TSRs of the test
	// when there are any, and is negative when one of them has no fail count.
	FailCount int

	// LoOverrides and HiOverrides hold raw limits, keyed by DUT index, of records whose limits
	// differ from the first record.
	LoOverrides map[int]float64 `msgpack:",omitempty"`
	HiOverrides map[int]float64 `msgpack:",omitempty"`
}

// Resolved returns the scaled limits of the test.
func (r *OffsetRecord) Resolved() limit.Limits {
	return limit.Resolve(r.Kind, r.Limits, r.OptFlag)
}

// PinNames holds the names of the pins of a test, aligned to its PMR index list.
type PinNames struct {
	PMR    []uint16
	LogNam []string
	PhyNam []string
	// ChanNam holds channel names per (head, site), aligned to PMR.
	ChanNam map[selection.HeadSite][]string
}

// Overrides holds per-DUT limits of a test that differ from its default limits.
type Overrides struct {
	Lo map[int]float64
	Hi map[int]float64
}

// Source is the query interface of an indexed file.
type Source interface {
	// TestInfo returns the location and defaults of a test, or a *stdf.LookupError.
	TestInfo(id stdf.TestID) (*OffsetRecord, error)
	// PinNames returns the pin names of a test for the given role.
	PinNames(id stdf.TestID, role PinRole) (PinNames, error)
	// BinStats returns DUT counts per bin number for a head and site. selection.AllSites
	// counts every site of the head. kind is stdf.HBR or stdf.SBR.
	BinStats(head uint8, site int, kind stdf.RecordType) map[uint16]int
	// DutTable returns the DUT axis of the file.
	DutTable() *selection.DutTable
	// Overrides returns the per-DUT limit overrides of a test, false when there are none.
	Overrides(id stdf.TestID) (Overrides, bool)
	// TestFailCount returns the number of failed DUTs per test; negative counts are unknown.
	TestFailCount() map[stdf.TestID]int
	// Endianness returns the byte order of the file.
	Endianness() stdf.Endianness
}
