package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewWithFormat(t *testing.T) {
	l, err := NewWithFormat("json", slog.LevelDebug)
	require.NoError(t, err)
	assert.True(t, l.Enabled(context.Background(), slog.LevelDebug))

	_, err = NewWithFormat("xml", slog.LevelInfo)
	assert.Error(t, err)
}
