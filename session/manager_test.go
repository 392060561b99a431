package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/arloliu/go-stdf/internal/stdftest"
	"github.com/arloliu/go-stdf/stdf"
	"github.com/stretchr/testify/require"
)

func TestManager_Load(t *testing.T) {
	require := require.New(t)

	ctx := context.Background()
	var progress []int
	m, err := NewManager(WithLogger(quietLogger()), WithProgress(func(p int) { progress = append(progress, p) }))
	require.NoError(err)
	defer m.Close()
	require.Nil(m.Current())

	first, err := m.Load(ctx, stdftest.Lot(t, stdf.LittleEndian).Save("a.stdf"))
	require.NoError(err)
	require.Same(first, m.Current())
	require.Equal(100, progress[len(progress)-1])
	require.NoError(first.PrepareData(ctx, []stdf.TestID{stdftest.PTRTest}, false))

	// a failed load keeps the current session usable
	_, err = m.Load(ctx, filepath.Join(t.TempDir(), "missing.stdf"))
	require.ErrorIs(err, stdf.ErrIO)
	require.Same(first, m.Current())
	require.NoError(first.GetData(ptrTuple, allSites).Err)
	require.Equal(uint64(2), m.Metrics().LoadCount.Load())
	require.Equal(uint64(1), m.Metrics().LoadErrCount.Load())

	second, err := m.Load(ctx, stdftest.Lot(t, stdf.BigEndian).Save("b.stdf"))
	require.NoError(err)
	require.Same(second, m.Current())
	require.NotEqual(first.ID(), second.ID())

	// the replaced session is closed
	require.ErrorIs(first.PrepareData(ctx, []stdf.TestID{stdftest.PTRTest}, false), ErrSessionClosed)
	require.NoError(second.PrepareData(ctx, []stdf.TestID{stdftest.PTRTest}, false))
	require.Equal([]float64{1, 2, 3}, second.GetData(ptrTuple, allSites).Values)

	require.NoError(m.Close())
	require.Nil(m.Current())
}

func TestManager_CanceledLoad(t *testing.T) {
	require := require.New(t)

	m, err := NewManager(WithLogger(quietLogger()))
	require.NoError(err)
	defer m.Close()

	path := stdftest.Lot(t, stdf.LittleEndian).Save("a.stdf")
	first, err := m.Load(context.Background(), path)
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Load(ctx, path)
	require.Error(err)
	require.Same(first, m.Current())
}
