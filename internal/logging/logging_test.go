package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zerolog.Level
		wantErr bool
	}{
		{in: "", want: zerolog.ErrorLevel},
		{in: "debug", want: zerolog.DebugLevel},
		{in: " INFO ", want: zerolog.InfoLevel},
		{in: "warning", want: zerolog.WarnLevel},
		{in: "warn", want: zerolog.WarnLevel},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatConsole, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestSetup(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	Setup(zerolog.InfoLevel, FormatJSON, &buf)

	log.Debug().Msg("hidden")
	log.Info().Str("model", "m1").Msg("Model loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Model loaded", entry["message"])
	assert.Equal(t, "m1", entry["model"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSetupConsole(t *testing.T) {
	prevLogger, prevLevel := log.Logger, zerolog.GlobalLevel()
	t.Cleanup(func() {
		log.Logger = prevLogger
		zerolog.SetGlobalLevel(prevLevel)
	})

	var buf bytes.Buffer
	logger := Setup(zerolog.DebugLevel, FormatConsole, &buf)
	logger.Debug().Msg("Split called")

	assert.Contains(t, buf.String(), "Split called")
	assert.NotContains(t, buf.String(), `"message"`)
}
