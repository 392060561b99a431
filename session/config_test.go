package session

import (
	"math"
	"testing"

	"github.com/arloliu/go-stdf/stdf"
	"github.com/arloliu/go-stdf/stream"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig()
	require.NoError(err)
	require.Equal(stdf.AutoEndian, cfg.Endianness())
	require.False(cfg.CheckCpk())
	require.InDelta(1.33, cfg.CpkThreshold(), 0)
	require.Equal(3, cfg.Precision())
	require.Equal(byte('f'), cfg.Notation())
	require.Empty(cfg.IndexCacheDir())
	require.NotNil(cfg.Logger())
	require.Equal("%.3f", cfg.ValueFormat())
}

func TestNewConfig_Options(t *testing.T) {
	tests := []struct {
		desc    string
		opt     Option
		wantErr bool
	}{
		{desc: "big endian", opt: WithEndianness(stdf.BigEndian)},
		{desc: "bad endianness", opt: WithEndianness(stdf.Endianness(9)), wantErr: true},
		{desc: "threshold", opt: WithCpkThreshold(1.67)},
		{desc: "negative threshold", opt: WithCpkThreshold(-1), wantErr: true},
		{desc: "NaN threshold", opt: WithCpkThreshold(math.NaN()), wantErr: true},
		{desc: "precision", opt: WithPrecision(6)},
		{desc: "precision too large", opt: WithPrecision(16), wantErr: true},
		{desc: "notation", opt: WithNotation('g')},
		{desc: "bad notation", opt: WithNotation('x'), wantErr: true},
		{desc: "nil logger", opt: WithLogger(nil), wantErr: true},
		{desc: "stream options", opt: WithStreamOptions(stream.WithBlockSize(1 << 20))},
		{desc: "cache dir", opt: WithIndexCacheDir(t.TempDir())},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			_, err := NewConfig(tt.opt)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_Set(t *testing.T) {
	require := require.New(t)

	cfg, err := NewConfig()
	require.NoError(err)

	require.NoError(cfg.Set(WithCheckCpk(true), WithPrecision(1), WithNotation('e')))
	require.True(cfg.CheckCpk())
	require.Equal("%.1e", cfg.ValueFormat())

	require.Error(cfg.Set(WithEndianness(stdf.BigEndian)))
	require.Equal(stdf.AutoEndian, cfg.Endianness())
}
