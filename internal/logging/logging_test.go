package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatText, ParseFormat("tint"))
	assert.Equal(t, FormatText, ParseFormat("TEXT"))
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatAuto, ParseFormat("xml"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, FormatAuto, slog.LevelInfo)
	log.Debug("hidden")
	log.Info("poll cycle", "entries", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"poll cycle"`)
	assert.Contains(t, out, `"entries":3`)
	assert.Contains(t, out, `"app":"keepclip"`)
}
