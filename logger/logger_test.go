package logger

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, zerolog.DebugLevel)

	ForComponent("fetcher").Info().Str("url", "https://example.com").Msg("Fetching page")

	out := buf.String()
	assert.Contains(t, out, "Fetching page")
	assert.Contains(t, out, "component=")
	assert.Contains(t, out, "fetcher")
}

func TestSetDebug(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, zerolog.DebugLevel)
	defer SetDebug(true)

	SetDebug(false)
	assert.False(t, IsDebugEnabled())
	Debug("hidden %d", 1)
	assert.NotContains(t, buf.String(), "hidden 1")

	SetDebug(true)
	assert.True(t, IsDebugEnabled())
	Debug("shown %d", 2)
	assert.Contains(t, buf.String(), "shown 2")
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, zerolog.DebugLevel)

	LogError("publisher", errors.New("connection refused"), "publish %s", "deal")

	out := buf.String()
	assert.Contains(t, out, "publish deal")
	assert.Contains(t, out, "connection refused")
}
