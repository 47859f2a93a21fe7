package logger

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)

	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"WARN", zerolog.WarnLevel},
		{" error ", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			SetLevel(tt.in)
			assert.Equal(t, tt.want, zerolog.GlobalLevel())
		})
	}
}

func TestSetOutput(t *testing.T) {
	original := Log
	defer func() { Log = original }()
	defer zerolog.SetGlobalLevel(zerolog.DebugLevel)
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var buf bytes.Buffer
	SetOutput(&buf)

	Log.Info().Str("route", "/bills").Msg("Request completed")
	Log.Debug().Msg("hidden")

	out := buf.String()
	require.Contains(t, out, `"route":"/bills"`)
	assert.Contains(t, out, `"message":"Request completed"`)
	assert.NotContains(t, out, "hidden")
}
