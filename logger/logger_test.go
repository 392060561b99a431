package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasErr   bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"fatal", FatalLevel, false},
		{"verbose", InfoLevel, true},
	}

	for _, tt := range tests {
		level, err := ParseLevel(tt.input)
		if tt.hasErr {
			assert.Error(t, err, tt.input)
		} else {
			assert.NoError(t, err, tt.input)
		}
		assert.Equal(t, tt.expected, level, tt.input)
	}
}

func TestSlogWriter(t *testing.T) {
	require := require.New(t)
	t.Setenv("ENV", "production")

	var buf bytes.Buffer
	l := NewSlogWriter(&buf, InfoLevel, false)

	l.Debug("hidden")
	require.Equal(0, buf.Len())

	child := l.With("session", "abc")
	child.Info("loaded", "tests", 3)

	var rec map[string]any
	require.NoError(json.Unmarshal(buf.Bytes(), &rec))
	require.Equal("loaded", rec["msg"])
	require.Equal("abc", rec["session"])
	require.EqualValues(3, rec["tests"])
	require.Contains(rec, "ts")

	child.SetLevel(DebugLevel)
	require.Equal(DebugLevel, l.Level())
}

func TestSetLogger(t *testing.T) {
	require := require.New(t)
	prev := GetLogger()
	t.Cleanup(func() { SetLogger(prev) })

	m := NewMockLogger().Allow("Debug")
	m.On("Info", "opened", []any{"file", "a.stdf"}).Return().Once()

	SetLogger(nil)
	require.Same(prev, GetLogger())

	SetLogger(m)
	Debug("ignored")
	With("session", "x").Info("opened", "file", "a.stdf")
	m.AssertExpectations(t)
}
