package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONOutputCarriesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{
		Level:       "debug",
		Environment: "production",
		ServiceName: "prepress-worklist",
		Version:     "1.2.0",
		Output:      &buf,
	})

	log.Info().Str("provenance", "shard_a").Int("rows", 3).Msg("pending fetched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "prepress-worklist", entry["service"])
	assert.Equal(t, "1.2.0", entry["version"])
	assert.Equal(t, "shard_a", entry["provenance"])
	assert.Equal(t, float64(3), entry["rows"])
	assert.Equal(t, "info", entry["level"])
}

func TestNew_InvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "chatty", Output: &buf})

	log.Debug().Msg("hidden")
	assert.Empty(t, buf.String())

	log.Info().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}
