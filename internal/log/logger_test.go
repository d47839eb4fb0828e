package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTo_JSONOutsideDev(t *testing.T) {
	defer InitTo("dev", &bytes.Buffer{})
	var buf bytes.Buffer
	InitTo("prod", &buf)

	log.Debug().Msg("hidden")
	log.Info().Str("k", "v").Msg("shown")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), buf.String())
	assert.Equal(t, "shown", rec["message"])
	assert.Equal(t, "newsdesk", rec["service"])
	assert.Equal(t, "v", rec["k"])
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
}

func TestInitTo_DevEnablesDebug(t *testing.T) {
	var buf bytes.Buffer
	InitTo("dev", &buf)

	log.Debug().Msg("visible in dev")
	assert.Contains(t, buf.String(), "visible in dev")
}
