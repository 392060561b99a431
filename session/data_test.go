package session

import (
	"context"
	"math"
	"testing"

	"github.com/arloliu/go-stdf/index"
	"github.com/arloliu/go-stdf/internal/stdftest"
	"github.com/arloliu/go-stdf/selection"
	"github.com/arloliu/go-stdf/stdf"
	"github.com/stretchr/testify/require"
)

var (
	spreadTest = stdf.TestID{Number: 1, Name: "SPREAD"}
	flatTest   = stdf.TestID{Number: 2, Name: "FLAT"}
)

// passingLot writes two passing tests on head 1 site 0: SPREAD with values 1 and 9 against
// [0, 10] (Cpk 0.42) and FLAT with a constant value (infinite Cpk).
func passingLot(t *testing.T) *stdftest.File {
	t.Helper()

	f := stdftest.New(t, stdf.LittleEndian)
	for _, v := range []float32{1, 9} {
		f.Add(
			&stdf.PIRRecord{Head: 1, Site: 0},
			&stdf.PTRRecord{TestNum: 1, Head: 1, Site: 0, Result: v, TestTxt: "SPREAD", LoLimit: 0, HiLimit: 10, Units: "V"},
			&stdf.PTRRecord{TestNum: 2, Head: 1, Site: 0, Result: 5, TestTxt: "FLAT", LoLimit: 0, HiLimit: 10, Units: "V"},
			&stdf.PRRRecord{Head: 1, Site: 0, HardBin: 1, SoftBin: 1},
		)
	}

	return f
}

func openFile(t *testing.T, f *stdftest.File, opts ...Option) *Session {
	t.Helper()

	s, err := Open(context.Background(), f.Save("lot.stdf"), newConfig(t, opts...))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func openPassingLot(t *testing.T, opts ...Option) *Session {
	t.Helper()
	return openFile(t, passingLot(t), opts...)
}

func summaryTSR(id stdf.TestID, fails uint32) *stdf.TSRRecord {
	return &stdf.TSRRecord{Head: 255, TestTyp: 'P', TestNum: id.Number, TestNam: id.Name, ExecCnt: 3, FailCnt: fails}
}

func TestIsTestFail(t *testing.T) {
	ctx := context.Background()
	spread := TestTuple{Number: spreadTest.Number, Name: spreadTest.Name}
	flat := TestTuple{Number: flatTest.Number, Name: flatTest.Name}

	t.Run("fail count from the index", func(t *testing.T) {
		require := require.New(t)
		s := openLot(t)
		for _, tt := range []TestTuple{ptrTuple, mprTuple(1), ftrTuple} {
			state, err := s.IsTestFail(ctx, tt)
			require.NoError(err)
			require.Equal(TestFailed, state)
		}
		require.Zero(s.Metrics().DecodeCount.Load())
	})

	t.Run("missing TSR count reads the flags", func(t *testing.T) {
		require := require.New(t)

		f := stdftest.Lot(t, stdf.LittleEndian)
		f.Add(summaryTSR(stdftest.PTRTest, stdf.MissingCount))
		s := openFile(t, f)
		n, _ := s.failCounts.Load(stdftest.PTRTest)
		require.Equal(-1, n)

		state, err := s.IsTestFail(ctx, ptrTuple)
		require.NoError(err)
		require.Equal(TestFailed, state)
		require.Equal(uint64(1), s.Metrics().DecodeCount.Load())
		n, _ = s.failCounts.Load(stdftest.PTRTest)
		require.Equal(1, n)

		f = passingLot(t)
		f.Add(summaryTSR(spreadTest, stdf.MissingCount))
		s = openFile(t, f)
		state, err = s.IsTestFail(ctx, spread)
		require.NoError(err)
		require.Equal(TestPassed, state)
		n, _ = s.failCounts.Load(spreadTest)
		require.Equal(0, n)
	})

	t.Run("TSR count wins over flags", func(t *testing.T) {
		require := require.New(t)

		f := stdftest.Lot(t, stdf.LittleEndian)
		f.Add(summaryTSR(stdftest.PTRTest, 0))
		s := openFile(t, f)
		state, err := s.IsTestFail(ctx, ptrTuple)
		require.NoError(err)
		require.Equal(TestPassed, state)

		f = passingLot(t)
		f.Add(summaryTSR(flatTest, 2))
		s = openFile(t, f)
		state, err = s.IsTestFail(ctx, flat)
		require.NoError(err)
		require.Equal(TestFailed, state)
		require.Zero(s.Metrics().DecodeCount.Load())
	})

	t.Run("cpk check off", func(t *testing.T) {
		require := require.New(t)
		s := openPassingLot(t)
		state, err := s.IsTestFail(ctx, spread)
		require.NoError(err)
		require.Equal(TestPassed, state)
		require.Zero(s.Metrics().DecodeCount.Load())
	})

	t.Run("cpk check on", func(t *testing.T) {
		require := require.New(t)
		s := openPassingLot(t, WithCheckCpk(true), WithCpkThreshold(1.33))

		state, err := s.IsTestFail(ctx, spread)
		require.NoError(err)
		require.Equal(CpkFailed, state)

		state, err = s.IsTestFail(ctx, flat)
		require.NoError(err)
		require.Equal(TestPassed, state)

		require.NoError(s.Config().Set(WithCpkThreshold(0.4)))
		state, err = s.IsTestFail(ctx, spread)
		require.NoError(err)
		require.Equal(TestPassed, state)
	})

	t.Run("unknown test", func(t *testing.T) {
		require := require.New(t)
		s := openPassingLot(t)
		_, err := s.IsTestFail(ctx, TestTuple{Number: 77})
		require.ErrorIs(err, index.ErrTestNotFound)
		require.ErrorIs(err, stdf.ErrLookup)
	})
}

func TestFailState_String(t *testing.T) {
	require := require.New(t)
	require.Equal("testPassed", TestPassed.String())
	require.Equal("testFailed", TestFailed.String())
	require.Equal("cpkFailed", CpkFailed.String())
	require.Equal("FailState(9)", FailState(9).String())
}

func TestChartSeries(t *testing.T) {
	s := openLot(t)
	prepareAll(t, s)

	t.Run("PTR with dynamic high limit", func(t *testing.T) {
		require := require.New(t)
		series := s.ChartSeries(s.GetData(ptrTuple, allSites))
		require.False(series.NoData)
		require.False(series.FlagAxis)
		require.Equal([]int{1, 2, 3}, series.X)
		require.Equal([]float64{1, 2, 3}, series.Y)
		require.False(series.HasDynLo)
		require.True(series.HasDynHi)
		require.Equal([]float64{2.5, 2.5, 3}, series.DynHi)
		require.InDelta(0.0, series.LimitMin, 0)
		require.InDelta(3.0, series.LimitMax, 0)
	})

	t.Run("FTR plots flags", func(t *testing.T) {
		require := require.New(t)
		series := s.ChartSeries(s.GetData(ftrTuple, allSites))
		require.True(series.FlagAxis)
		require.Equal([]float64{0, 0, 128}, series.Y)
		require.True(math.IsNaN(series.LimitMax))
	})

	t.Run("MPR without values falls back to flags", func(t *testing.T) {
		require := require.New(t)
		series := s.ChartSeries(s.GetData(mprTuple(0), allSites))
		require.False(series.NoData)
		require.True(series.FlagAxis)
		require.Equal([]int{1, 2, 3}, series.X)
		require.Equal([]float64{0, 0, 128}, series.Y)
	})

	t.Run("MPR pin values", func(t *testing.T) {
		require := require.New(t)
		series := s.ChartSeries(s.GetData(mprTuple(1), Selection{Heads: []uint8{1}, Sites: []int{0}}))
		require.False(series.FlagAxis)
		require.Equal([]int{1, 3}, series.X)
		require.InDeltaSlice([]float64{0.5, 1.5}, series.Y, 1e-6)
	})

	t.Run("empty selection has no data", func(t *testing.T) {
		require := require.New(t)
		series := s.ChartSeries(s.GetData(ptrTuple, Selection{Heads: []uint8{2}, Sites: []int{selection.AllSites}}))
		require.True(series.NoData)
		require.Empty(series.X)
	})
}

func TestStatRow(t *testing.T) {
	t.Run("lot", func(t *testing.T) {
		require := require.New(t)
		s := openLot(t)
		prepareAll(t, s)

		row := s.StatRow(ptrTuple, 1, selection.AllSites)
		require.Equal([]string{
			"100 / Head 1 / All Sites", "VDD", "V", "0.000", "2.500", "1",
			"0.204", "2.000", "2.000", "0.816", "1.000", "3.000",
		}, row.Strings(false, false))

		row = s.StatRow(mprTuple(2), 1, 1)
		require.Equal("100 / Head 1 / Site1", s.StatRow(ptrTuple, 1, 1).Label)
		cols := row.Strings(true, true)
		require.Equal([]string{"200 / Head 1 / Site1", "PINS", "2", "IO_PIN", "P2", "CH2_S1", ""}, cols[:7])
		require.Equal("0", row.FailCount)

		row = s.StatRow(ftrTuple, 1, selection.AllSites)
		require.Equal("pat1", row.VectName)
		require.Equal("N/A", row.Lo)
		require.Equal("N/A", row.Cpk)
	})

	t.Run("infinite cpk and notation", func(t *testing.T) {
		require := require.New(t)
		s := openPassingLot(t, WithPrecision(2), WithNotation('e'))
		require.NoError(s.PrepareData(context.Background(), []stdf.TestID{flatTest}, false))

		row := s.StatRow(TestTuple{Number: flatTest.Number, Name: flatTest.Name}, 1, 0)
		require.Equal("∞", row.Cpk)
		require.Equal("5.00e+00", row.Mean)
		require.Equal("1.00e+01", row.Hi)
	})
}
