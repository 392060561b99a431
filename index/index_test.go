package index

import (
	"bytes"
	"context"
	"io"
	"math"
	"testing"

	"github.com/arloliu/go-stdf/internal/stdftest"
	"github.com/arloliu/go-stdf/logger"
	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/stdf"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func quietLogger() logger.Logger {
	return logger.NewSlogWriter(io.Discard, logger.ErrorLevel, false)
}

func buildLot(t *testing.T, order stdf.Endianness) (*MemIndex, []byte) {
	t.Helper()
	data := stdftest.Lot(t, order).Bytes()
	idx, err := Build(context.Background(), bytes.NewReader(data), WithLogger(quietLogger()))
	require.NoError(t, err)

	return idx, data
}

func TestBuild_Lot(t *testing.T) {
	for _, order := range []stdf.Endianness{stdf.LittleEndian, stdf.BigEndian} {
		t.Run(order.String(), func(t *testing.T) {
			require := require.New(t)

			idx, _ := buildLot(t, order)
			require.Equal(order, idx.Endianness())
			require.Equal("LOT1", idx.MIR().Text[stdf.MIRLotID])

			dt := idx.DutTable()
			require.Equal([]int{1, 2, 3}, dt.DutArray())
			require.Equal([]int{0, 1, 0}, dt.SiteInfo(1))
			require.Equal([]uint8{1}, dt.Heads())

			var ids []stdf.TestID
			for _, rec := range idx.Tests() {
				ids = append(ids, rec.ID)
			}
			require.Equal([]stdf.TestID{stdftest.PTRTest, stdftest.MPRTest, stdftest.FTRTest}, ids)

			counts := idx.RecordCounts()
			require.Equal(3, counts[stdf.PTR])
			require.Equal(3, counts[stdf.PIR])
			require.Equal(4, counts[stdf.PMR])
			require.Equal(1, counts[stdf.FAR])
		})
	}
}

func TestBuild_OffsetRecords(t *testing.T) {
	require := require.New(t)

	idx, data := buildLot(t, stdf.LittleEndian)

	ptr, err := idx.TestInfo(stdftest.PTRTest)
	require.NoError(err)
	require.Equal(stdf.PTR, ptr.Kind)
	require.Len(ptr.Offsets, 3)
	require.Equal(1, ptr.FailCount)
	require.Equal(uint8(0x0C), ptr.OptFlag)
	require.True(ptr.Limits.HasScale)
	require.InDelta(0.0, ptr.Limits.Lo, 0)
	require.InDelta(2.5, ptr.Limits.Hi, 0)
	require.Equal("V", ptr.Limits.Unit)

	resolved := ptr.Resolved()
	require.True(math.IsNaN(resolved.LoSpec))
	require.True(math.IsNaN(resolved.HiSpec))
	require.InDelta(2.5, resolved.Hi, 0)

	ov, ok := idx.Overrides(stdftest.PTRTest)
	require.True(ok)
	require.Empty(ov.Lo)
	require.Equal(map[int]float64{3: 3}, ov.Hi)
	_, ok = idx.Overrides(stdftest.MPRTest)
	require.False(ok)

	// the offsets decode back to the lot values
	d, err := stdf.DecodeTest(context.Background(), bytes.NewReader(data), &ptr.TestLocation, idx.Endianness())
	require.NoError(err)
	require.Equal([]float64{1, 2, 3}, d.Values)
	require.Equal([]stdf.TestFlag{0, 0, 0x80}, d.Flags)

	mpr, err := idx.TestInfo(stdftest.MPRTest)
	require.NoError(err)
	require.Equal(2, mpr.PinCount)
	require.Equal(2, mpr.ResultCount)
	require.Equal([]uint16{1, 2}, mpr.RtnIndx)

	ftr, err := idx.TestInfo(stdftest.FTRTest)
	require.NoError(err)
	require.Equal("pat1", ftr.VectNam)
	require.Equal(1, ftr.FailCount)

	fails := idx.TestFailCount()
	require.Equal(map[stdf.TestID]int{stdftest.PTRTest: 1, stdftest.MPRTest: 1, stdftest.FTRTest: 1}, fails)

	_, err = idx.TestInfo(stdf.TestID{Number: 1, Name: "nope"})
	require.ErrorIs(err, stdf.ErrLookup)
	require.ErrorIs(err, ErrTestNotFound)
}

func TestBuild_TSRFailCount(t *testing.T) {
	site := func(s uint8, num uint32, name string, fails uint32) *stdf.TSRRecord {
		return &stdf.TSRRecord{Head: 1, Site: s, TestTyp: 'P', TestNum: num, TestNam: name, FailCnt: fails, ExecCnt: 3}
	}
	summary := func(num uint32, name string, fails uint32) *stdf.TSRRecord {
		return &stdf.TSRRecord{Head: 255, TestTyp: 'P', TestNum: num, TestNam: name, FailCnt: fails, ExecCnt: 3}
	}

	tests := []struct {
		name string
		tsrs []stdf.Record
		want map[stdf.TestID]int
	}{
		{
			name: "no TSR keeps flag counts",
			want: map[stdf.TestID]int{stdftest.PTRTest: 1, stdftest.MPRTest: 1, stdftest.FTRTest: 1},
		},
		{
			name: "site records are summed",
			tsrs: []stdf.Record{site(0, 100, "VDD", 2), site(1, 100, "VDD", 3)},
			want: map[stdf.TestID]int{stdftest.PTRTest: 5, stdftest.MPRTest: 1, stdftest.FTRTest: 1},
		},
		{
			name: "summary wins over sites",
			tsrs: []stdf.Record{site(0, 100, "VDD", 2), summary(100, "VDD", 7)},
			want: map[stdf.TestID]int{stdftest.PTRTest: 7, stdftest.MPRTest: 1, stdftest.FTRTest: 1},
		},
		{
			name: "missing summary count is unknown",
			tsrs: []stdf.Record{site(0, 200, "PINS", 1), summary(200, "PINS", stdf.MissingCount)},
			want: map[stdf.TestID]int{stdftest.PTRTest: 1, stdftest.MPRTest: -1, stdftest.FTRTest: 1},
		},
		{
			name: "missing site count is unknown",
			tsrs: []stdf.Record{site(0, 300, "FUNC", 1), site(1, 300, "FUNC", stdf.MissingCount)},
			want: map[stdf.TestID]int{stdftest.PTRTest: 1, stdftest.MPRTest: 1, stdftest.FTRTest: -1},
		},
		{
			name: "unnamed record takes the test name",
			tsrs: []stdf.Record{site(0, 300, "", 0), site(1, 300, "FUNC", 0)},
			want: map[stdf.TestID]int{stdftest.PTRTest: 1, stdftest.MPRTest: 1, stdftest.FTRTest: 0},
		},
		{
			name: "record of an unknown test is ignored",
			tsrs: []stdf.Record{summary(999, "GHOST", 4)},
			want: map[stdf.TestID]int{stdftest.PTRTest: 1, stdftest.MPRTest: 1, stdftest.FTRTest: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			f := stdftest.Lot(t, stdf.LittleEndian)
			f.Add(tt.tsrs...)
			idx, err := Build(context.Background(), bytes.NewReader(f.Bytes()), WithLogger(quietLogger()))
			require.NoError(err)
			require.Equal(tt.want, idx.TestFailCount())
			require.Equal(len(tt.tsrs), idx.RecordCounts()[stdf.TSR])
		})
	}
}

func TestBuild_PinsBinsDUTs(t *testing.T) {
	require := require.New(t)

	idx, _ := buildLot(t, stdf.LittleEndian)

	pins, err := idx.PinNames(stdftest.MPRTest, RolePin)
	require.NoError(err)
	require.Equal([]uint16{1, 2}, pins.PMR)
	require.Equal([]string{"VDD_PIN", "IO_PIN"}, pins.LogNam)
	require.Equal([]string{"P1", "P2"}, pins.PhyNam)
	require.Equal([]string{"CH1_S0", "CH2_S0"}, pins.ChanNam[selection.HeadSite{Head: 1, Site: 0}])
	require.Equal([]string{"CH1_S1", "CH2_S1"}, pins.ChanNam[selection.HeadSite{Head: 1, Site: 1}])

	pins, err = idx.PinNames(stdftest.MPRTest, RolePgm)
	require.NoError(err)
	require.Empty(pins.PMR)

	_, err = idx.PinNames(stdftest.MPRTest, PinRole("XYZ"))
	require.ErrorIs(err, ErrUnknownPinRole)
	_, err = idx.PinNames(stdf.TestID{Number: 5}, RolePin)
	require.ErrorIs(err, stdf.ErrLookup)

	require.Equal(map[uint16]int{1: 2, 2: 1}, idx.BinStats(1, selection.AllSites, stdf.HBR))
	require.Equal(map[uint16]int{1: 1, 20: 1}, idx.BinStats(1, 0, stdf.SBR))
	require.Empty(idx.BinStats(2, selection.AllSites, stdf.HBR))

	bin, ok := idx.Bin(stdf.SBR, 20)
	require.True(ok)
	require.Equal("VDD_FAIL", bin.Name)
	require.Equal(byte('F'), bin.Pass)

	duts := idx.DUTs()
	require.Len(duts, 3)
	require.Equal("3", duts[2].PartID)
	require.True(duts[2].Failed())
	require.False(duts[0].Failed())
	require.Equal(0, duts[1].Wafer)

	wafers := idx.Wafers()
	require.Len(wafers, 1)
	require.Equal("W01", wafers[0].WaferID)
	require.Equal(1, wafers[0].FirstDUT)
	require.Equal(3, wafers[0].LastDUT)
	require.Equal(uint32(2), wafers[0].GoodCnt)
}

func TestBuild_Progress(t *testing.T) {
	require := require.New(t)

	data := stdftest.Lot(t, stdf.LittleEndian).Bytes()
	var milestones []int
	_, err := Build(context.Background(), bytes.NewReader(data),
		WithSize(int64(len(data))),
		WithProgress(func(p int) { milestones = append(milestones, p) }),
		WithLogger(quietLogger()),
	)
	require.NoError(err)
	require.NotEmpty(milestones)
	require.Equal(100, milestones[len(milestones)-1])
	for i := 1; i < len(milestones); i++ {
		require.Greater(milestones[i], milestones[i-1])
	}
}

func TestBuild_TruncatedStream(t *testing.T) {
	require := require.New(t)

	f := stdftest.New(t, stdf.LittleEndian)
	f.Add(
		&stdf.PIRRecord{Head: 1, Site: 0},
		&stdf.PTRRecord{TestNum: 1, Head: 1, Site: 0, Result: 1, TestTxt: "A"},
		&stdf.PRRRecord{Head: 1, Site: 0},
		&stdf.PIRRecord{Head: 1, Site: 0},
		&stdf.PTRRecord{TestNum: 1, Head: 1, Site: 0, Result: 2, TestTxt: "A"},
	)
	data := f.Bytes()

	ml := logger.NewMockLogger().Allow("Debug")
	ml.On("Warn", "stream ends inside a record, index truncated", mock.Anything).Return().Once()

	idx, err := Build(context.Background(), bytes.NewReader(data[:len(data)-3]), WithLogger(ml))
	require.NoError(err)
	ml.AssertExpectations(t)

	require.Equal([]int{1, 2}, idx.DutTable().DutArray())
	info, err := idx.TestInfo(stdf.TestID{Number: 1, Name: "A"})
	require.NoError(err)
	require.Equal(int64(-1), info.Offsets[1])
	require.False(idx.DUTs()[1].Tested())
}

func TestBuild_OrphansAndNames(t *testing.T) {
	require := require.New(t)

	f := stdftest.New(t, stdf.BigEndian)
	f.Add(
		&stdf.PTRRecord{TestNum: 9, Head: 1, Site: 0, Result: 1, TestTxt: "ORPHAN"},
		&stdf.PIRRecord{Head: 2, Site: 3},
		&stdf.PTRRecord{TestNum: 1, Head: 2, Site: 3, Result: 1, TestTxt: "A"},
		&stdf.PRRRecord{Head: 2, Site: 3},
		&stdf.PIRRecord{Head: 1, Site: 0},
		&stdf.PTRRecord{TestNum: 1, Head: 1, Site: 0, Result: 2},
		&stdf.PRRRecord{Head: 1, Site: 0},
	)

	ml := logger.NewMockLogger().Allow("Debug")
	ml.On("Warn", "test records outside of a PIR/PRR pair ignored", mock.Anything).Return().Once()

	idx, err := Build(context.Background(), bytes.NewReader(f.Bytes()), WithLogger(ml))
	require.NoError(err)
	ml.AssertExpectations(t)

	require.Len(idx.Tests(), 1)
	info, err := idx.TestInfo(stdf.TestID{Number: 1, Name: "A"})
	require.NoError(err)
	require.NotEqual(int64(-1), info.Offsets[0])
	require.NotEqual(int64(-1), info.Offsets[1])

	dt := idx.DutTable()
	require.Equal([]int{3, selection.NoSite}, dt.SiteInfo(2))
	require.Equal([]int{selection.NoSite, 0}, dt.SiteInfo(1))
	require.Equal([]uint8{1, 2}, dt.Heads())
}

func TestBuild_Errors(t *testing.T) {
	require := require.New(t)

	_, err := Build(context.Background(), bytes.NewReader([]byte{2, 0, 1, 10, 0, 0}))
	require.ErrorIs(err, stdf.ErrFormat)

	_, err = Build(context.Background(), bytes.NewReader(nil))
	require.ErrorIs(err, stdf.ErrNoFAR)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Build(ctx, bytes.NewReader(stdftest.Lot(t, stdf.LittleEndian).Bytes()), WithLogger(quietLogger()))
	require.ErrorIs(err, context.Canceled)
}

func TestSnapshot_MsgpackRoundTrip(t *testing.T) {
	require := require.New(t)

	idx, _ := buildLot(t, stdf.BigEndian)
	data, err := msgpack.Marshal(idx.Snapshot())
	require.NoError(err)

	var snap Snapshot
	require.NoError(msgpack.Unmarshal(data, &snap))
	restored, err := FromSnapshot(&snap)
	require.NoError(err)

	require.Equal(stdf.BigEndian, restored.Endianness())
	require.Equal(idx.DutTable().DutArray(), restored.DutTable().DutArray())
	require.Equal(idx.TestFailCount(), restored.TestFailCount())

	a, _ := idx.TestInfo(stdftest.PTRTest)
	b, err := restored.TestInfo(stdftest.PTRTest)
	require.NoError(err)
	require.Equal(a.TestLocation, b.TestLocation)
	require.Equal(a.HiOverrides, b.HiOverrides)
	require.True(math.IsNaN(b.Limits.LoSpec) == math.IsNaN(a.Limits.LoSpec))
	require.InDelta(a.Limits.Hi, b.Limits.Hi, 0)

	pa, _ := idx.PinNames(stdftest.MPRTest, RolePin)
	pb, _ := restored.PinNames(stdftest.MPRTest, RolePin)
	require.Equal(pa, pb)
	require.Equal(idx.MIR(), restored.MIR())

	snap.Version = 99
	_, err = FromSnapshot(&snap)
	require.Error(err)
}
