package index

import (
	"github.com/arloliu/go-stdf/stdf"
)

// Pin is a PMR entry.
type Pin struct {
	Index   uint16
	ChanTyp uint16
	LogNam  string
	PhyNam  string
}

// Channel is the channel name of a pin at one (head, site).
type Channel struct {
	Head  uint8
	Site  uint8
	Index uint16
	Name  string
}

// Bin is the name and pass/fail class of a hardware or software bin.
type Bin struct {
	Kind stdf.RecordType
	Num  uint16
	Name string
	Pass byte
}

// DUT summarises the PRR of one device.
type DUT struct {
	Index    int
	Head     uint8
	Site     uint8
	PartID   string
	PartTxt  string
	HardBin  uint16
	SoftBin  uint16
	X        int16
	Y        int16
	TestTime uint32
	NumTest  uint16
	PartFlag uint8
	// Wafer is the position in the wafer list, -1 outside of a wafer.
	Wafer int
}

// Failed reports whether the part failed.
func (d DUT) Failed() bool {
	return d.PartFlag&0b00010000 == 0 && d.PartFlag&0b00001000 != 0
}

// Tested reports whether a PRR closed the DUT.
func (d DUT) Tested() bool {
	return d.Index > 0
}

// Wafer summarises a WIR/WRR pair.
type Wafer struct {
	Head     uint8
	WaferID  string
	StartT   uint32
	FinishT  uint32
	PartCnt  uint32
	GoodCnt  uint32
	FirstDUT int
	LastDUT  int
}
