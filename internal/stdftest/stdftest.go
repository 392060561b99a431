// Package stdftest writes synthetic STDF files for tests.
package stdftest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/arloliu/go-stdf/stdf"
)

// File accumulates encoded records.
type File struct {
	tb  testing.TB
	buf bytes.Buffer
	w   *stdf.Writer
}

// New starts a file with a FAR announcing order.
func New(tb testing.TB, order stdf.Endianness) *File {
	tb.Helper()
	f := &File{tb: tb}
	f.w = stdf.NewWriter(&f.buf, order)
	if err := f.w.WriteFAR(); err != nil {
		tb.Fatalf("write FAR: %v", err)
	}

	return f
}

// Add appends records and returns the offset of the first one.
func (f *File) Add(recs ...stdf.Record) int64 {
	f.tb.Helper()
	first := f.w.Offset()
	for _, rec := range recs {
		if _, _, err := f.w.Write(rec); err != nil {
			f.tb.Fatalf("write %s: %v", rec.Type(), err)
		}
	}

	return first
}

// Bytes returns the encoded file.
func (f *File) Bytes() []byte { return f.buf.Bytes() }

// Save writes the file to name inside a temporary directory and returns its path.
func (f *File) Save(name string) string {
	f.tb.Helper()
	path := filepath.Join(f.tb.TempDir(), name)
	if err := os.WriteFile(path, f.buf.Bytes(), 0o600); err != nil {
		f.tb.Fatalf("save %s: %v", name, err)
	}

	return path
}

// Test ids of the records written by Lot.
var (
	PTRTest = stdf.TestID{Number: 100, Name: "VDD"}
	MPRTest = stdf.TestID{Number: 200, Name: "PINS"}
	FTRTest = stdf.TestID{Number: 300, Name: "FUNC"}
)

// Lot writes a three DUT lot on head 1:
//
//	DUT  site  PTR 100 (flag, value)  MPR 200 states/results       FTR 300  bins (hard, soft)
//	1    0     0, 1.0                 [1 1] [0.5 0.7]              0        1, 1
//	2    1     0, 2.0                 [1 0] [0.6 0.8]              0        1, 1
//	3    0     0x80, 3.0              [6 1] [1.5 0.9] flag 0x80    0x80     2, 20 (failed)
//
// PTR 100 has limits [0, 2.5] V with spec limits disabled; DUT 3 overrides the high limit
// with 3.0. MPR 200 maps result 0 to PMR 1 and result 1 to PMR 2 with limits [0, 1] A.
func Lot(tb testing.TB, order stdf.Endianness) *File {
	tb.Helper()

	f := New(tb, order)
	mir := &stdf.MIRRecord{SetupT: 1000, StartT: 1001, StatNum: 1, ModeCod: 'P'}
	mir.Text[stdf.MIRLotID] = "LOT1"
	mir.Text[stdf.MIRPartTyp] = "DEV"
	f.Add(
		mir,
		&stdf.PMRRecord{Index: 1, ChanNam: "CH1_S0", PhyNam: "P1", LogNam: "VDD_PIN", Head: 1, Site: 0},
		&stdf.PMRRecord{Index: 1, ChanNam: "CH1_S1", PhyNam: "P1", LogNam: "VDD_PIN", Head: 1, Site: 1},
		&stdf.PMRRecord{Index: 2, ChanNam: "CH2_S0", PhyNam: "P2", LogNam: "IO_PIN", Head: 1, Site: 0},
		&stdf.PMRRecord{Index: 2, ChanNam: "CH2_S1", PhyNam: "P2", LogNam: "IO_PIN", Head: 1, Site: 1},
		&stdf.WIRRecord{Head: 1, SiteGrp: 255, StartT: 1002, WaferID: "W01"},
	)

	// DUT 1
	f.Add(
		&stdf.PIRRecord{Head: 1, Site: 0},
		&stdf.PTRRecord{TestNum: 100, Head: 1, Site: 0, Result: 1, TestTxt: "VDD", OptFlag: 0x0C, LoLimit: 0, HiLimit: 2.5, Units: "V"},
		&stdf.MPRRecord{
			TestNum: 200, Head: 1, Site: 0, RtnStat: []uint8{1, 1}, RtnRslt: []float32{0.5, 0.7}, TestTxt: "PINS",
			OptFlag: 0x0C, LoLimit: 0, HiLimit: 1, RtnIndx: []uint16{1, 2}, Units: "A",
		},
		&stdf.FTRRecord{TestNum: 300, Head: 1, Site: 0, RtnIndx: []uint16{1}, RtnStat: []uint8{0}, VectNam: "pat1", TestTxt: "FUNC"},
		&stdf.PRRRecord{Head: 1, Site: 0, NumTest: 3, HardBin: 1, SoftBin: 1, XCoord: 1, YCoord: 1, TestT: 10, PartID: "1"},
	)

	// DUT 2, later records omit optional fields
	f.Add(
		&stdf.PIRRecord{Head: 1, Site: 1},
		&stdf.PTRRecord{TestNum: 100, Head: 1, Site: 1, Result: 2, TestTxt: "VDD", Fields: stdf.PTRFieldTestTxt + 1},
		&stdf.MPRRecord{TestNum: 200, Head: 1, Site: 1, RtnStat: []uint8{1, 0}, RtnRslt: []float32{0.6, 0.8}, TestTxt: "PINS", Fields: stdf.MPRFieldTestTxt + 1},
		&stdf.FTRRecord{TestNum: 300, Head: 1, Site: 1, TestTxt: "FUNC"},
		&stdf.PRRRecord{Head: 1, Site: 1, NumTest: 3, HardBin: 1, SoftBin: 1, XCoord: 2, YCoord: 1, TestT: 11, PartID: "2"},
	)

	// DUT 3 fails every test
	f.Add(
		&stdf.PIRRecord{Head: 1, Site: 0},
		&stdf.PTRRecord{TestNum: 100, Head: 1, Site: 0, TestFlg: 0x80, Result: 3, TestTxt: "VDD", OptFlag: 0x0C, LoLimit: 0, HiLimit: 3, Units: "V"},
		&stdf.MPRRecord{TestNum: 200, Head: 1, Site: 0, TestFlg: 0x80, RtnStat: []uint8{6, 1}, RtnRslt: []float32{1.5, 0.9}, TestTxt: "PINS", Fields: stdf.MPRFieldTestTxt + 1},
		&stdf.FTRRecord{TestNum: 300, Head: 1, Site: 0, TestFlg: 0x80, TestTxt: "FUNC"},
		&stdf.PRRRecord{Head: 1, Site: 0, PartFlg: 0x08, NumTest: 3, HardBin: 2, SoftBin: 20, XCoord: 1, YCoord: 2, TestT: 12, PartID: "3"},
	)

	f.Add(
		&stdf.WRRRecord{Head: 1, SiteGrp: 255, FinishT: 1003, PartCnt: 3, GoodCnt: 2, WaferID: "W01"},
		&stdf.BinRecord{Kind: stdf.HBR, Head: 255, Num: 1, Count: 2, Pass: 'P', Name: "PASS"},
		&stdf.BinRecord{Kind: stdf.HBR, Head: 255, Num: 2, Count: 1, Pass: 'F', Name: "FAIL"},
		&stdf.BinRecord{Kind: stdf.SBR, Head: 255, Num: 1, Count: 2, Pass: 'P', Name: "ALL_PASS"},
		&stdf.BinRecord{Kind: stdf.SBR, Head: 255, Num: 20, Count: 1, Pass: 'F', Name: "VDD_FAIL"},
	)

	return f
}
