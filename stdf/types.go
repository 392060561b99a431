package stdf

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// RecordType identifies a record by REC_TYP<<8 | REC_SUB.
type RecordType uint16

const (
	FAR RecordType = 0<<8 | 10
	ATR RecordType = 0<<8 | 20
	MIR RecordType = 1<<8 | 10
	MRR RecordType = 1<<8 | 20
	PCR RecordType = 1<<8 | 30
	HBR RecordType = 1<<8 | 40
	SBR RecordType = 1<<8 | 50
	PMR RecordType = 1<<8 | 60
	PGR RecordType = 1<<8 | 62
	PLR RecordType = 1<<8 | 63
	RDR RecordType = 1<<8 | 70
	SDR RecordType = 1<<8 | 80
	WIR RecordType = 2<<8 | 10
	WRR RecordType = 2<<8 | 20
	WCR RecordType = 2<<8 | 30
	PIR RecordType = 5<<8 | 10
	PRR RecordType = 5<<8 | 20
	TSR RecordType = 10<<8 | 30
	PTR RecordType = 15<<8 | 10
	MPR RecordType = 15<<8 | 15
	FTR RecordType = 15<<8 | 20
	BPS RecordType = 20<<8 | 10
	EPS RecordType = 20<<8 | 20
	GDR RecordType = 50<<8 | 10
	DTR RecordType = 50<<8 | 30
)

var recordTypeNames = map[RecordType]string{
	FAR: "FAR", ATR: "ATR", MIR: "MIR", MRR: "MRR", PCR: "PCR", HBR: "HBR", SBR: "SBR",
	PMR: "PMR", PGR: "PGR", PLR: "PLR", RDR: "RDR", SDR: "SDR", WIR: "WIR", WRR: "WRR",
	WCR: "WCR", PIR: "PIR", PRR: "PRR", TSR: "TSR", PTR: "PTR", MPR: "MPR", FTR: "FTR",
	BPS: "BPS", EPS: "EPS", GDR: "GDR", DTR: "DTR",
}

// NewRecordType composes a RecordType from REC_TYP and REC_SUB.
func NewRecordType(typ, sub uint8) RecordType {
	return RecordType(uint16(typ)<<8 | uint16(sub))
}

func (t RecordType) Typ() uint8 { return uint8(t >> 8) }
func (t RecordType) Sub() uint8 { return uint8(t) }

// IsTestRecord reports whether t is one of the per-DUT test result records PTR, FTR or MPR.
func (t RecordType) IsTestRecord() bool {
	return t == PTR || t == FTR || t == MPR
}

func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("REC(%d,%d)", t.Typ(), t.Sub())
}

// ParseRecordType parses a record name such as "ptr".
func ParseRecordType(name string) (RecordType, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for t, n := range recordTypeNames {
		if n == upper {
			return t, nil
		}
	}

	return 0, fmt.Errorf("unknown record type %q", name)
}

// Endianness is the byte order of multi-byte fields in a file.
type Endianness uint8

const (
	// AutoEndian asks the reader to detect the byte order from the FAR record.
	AutoEndian Endianness = iota
	LittleEndian
	BigEndian
)

// Order reads and appends multi-byte values in one byte order.
type Order interface {
	binary.ByteOrder
	binary.AppendByteOrder
}

// ByteOrder returns the encoding/binary order. AutoEndian maps to little endian,
// the order written by virtually every current tester.
func (e Endianness) ByteOrder() Order {
	if e == BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (e Endianness) String() string {
	switch e {
	case LittleEndian:
		return "little"
	case BigEndian:
		return "big"
	}
	return "auto"
}

// ParseEndianness parses "auto", "little" or "big".
func ParseEndianness(name string) (Endianness, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return AutoEndian, nil
	case "little", "le":
		return LittleEndian, nil
	case "big", "be":
		return BigEndian, nil
	}

	return AutoEndian, fmt.Errorf("unknown byte order %q", name)
}

// EndiannessFromCPUType maps the FAR CPU_TYPE field to a byte order.
// CPU_TYPE 1 is Sun (big endian), 2 is x86 (little endian); 0 (DEC) stores
// integers little endian as well. Unknown values return AutoEndian.
func EndiannessFromCPUType(cpuType uint8) Endianness {
	switch cpuType {
	case 0, 2:
		return LittleEndian
	case 1:
		return BigEndian
	}
	return AutoEndian
}

// CPUType is the FAR CPU_TYPE value that announces e.
func (e Endianness) CPUType() uint8 {
	if e == BigEndian {
		return 1
	}
	return 2
}

// TestID identifies a test by number and name. MPR tests are further split by PMR index at
// query time, which is not part of the id.
type TestID struct {
	Number uint32
	Name   string
}

func (id TestID) String() string {
	return fmt.Sprintf("%d %s", id.Number, id.Name)
}

// TestFlag is the TEST_FLG byte of one DUT. It is widened to int16 so that the full byte range
// stays non-negative and NotTested can be expressed as a sentinel.
type TestFlag int16

// NotTested marks a DUT for which the test has no record.
const NotTested TestFlag = -1

// IsPass implements the pass/fail convention for TEST_FLG:
// bits 7-6 "00" pass, "10" fail, "x1" no pass/fail indication and treated as pass.
// A negative flag (not tested) is treated as pass.
func (f TestFlag) IsPass() bool {
	if f < 0 || f&0b11000000 == 0 {
		return true
	}

	return f&0b01000000 != 0
}

// Tested reports whether the DUT has a record for the test.
func (f TestFlag) Tested() bool {
	return f >= 0
}
