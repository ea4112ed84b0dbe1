package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureJSON(t *testing.T) {
	t.Cleanup(func() { Configure("info", "console") })

	var buf bytes.Buffer
	ConfigureOutput(&buf, "debug", "json")

	log.Debug().Str("key", "tareas/2024/5to").Msg("listing")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "tareas/2024/5to", entry["key"])
	assert.Equal(t, zerolog.DebugLevel, Log.GetLevel())
}

func TestConfigureInvalidLevelFallsBackToInfo(t *testing.T) {
	t.Cleanup(func() { Configure("info", "console") })

	var buf bytes.Buffer
	ConfigureOutput(&buf, "chatty", "json")

	assert.Equal(t, zerolog.InfoLevel, Log.GetLevel())
	assert.Contains(t, buf.String(), "invalid log level")
}
