package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FORMS_AI_LOG_LEVEL", "warn")
	t.Setenv("FORMS_AI_LOG_COLOR", "0")

	cfg := ConfigFromEnv()
	assert.Equal(t, LevelWarn, cfg.Level)
	assert.False(t, cfg.Color)
}

func TestLoggerRespectsLevelAndComponent(t *testing.T) {
	var buf bytes.Buffer
	log := Config{Level: LevelWarn, Color: false, AppEnv: "production", Out: &buf}.For(ComponentOCR)

	log.LogInfo("hidden")
	log.LogWarnf("engine %s unavailable", "tesseract")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[OCR] engine tesseract unavailable")
	assert.Contains(t, out, "[WARN]")
	assert.NotContains(t, out, "\033[")
	assert.Equal(t, ComponentOCR, log.Component())
}

func TestStripANSI(t *testing.T) {
	assert.Equal(t, "[INFO] ok", StripANSI("\033[34m[INFO]\033[0m ok"))
}
