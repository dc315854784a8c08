package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FORMS_AI_CONFIG", "")
	t.Setenv("DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "qwen3:8b", cfg.ModelName)
	assert.Equal(t, "ollama", cfg.ModelProvider)
	assert.Equal(t, 35*time.Second, cfg.ModelTimeout)
	assert.Equal(t, 2, cfg.ModelMaxAttempts)
	assert.True(t, cfg.OfflineFallback)
	assert.True(t, cfg.Cleanup)
	assert.False(t, cfg.RetainImages)
	assert.Equal(t, filepath.Join("data", "output", "jsons"), filepath.Clean(cfg.JSONDir))
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("FORMS_AI_MODEL: llama3:8b\nFORMS_AI_MODEL_TIMEOUT: 10\nFORMS_AI_CLEANUP: false\n"), 0o644))

	t.Setenv("FORMS_AI_CONFIG", path)
	t.Setenv("FORMS_AI_MODEL", "mistral:7b")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "mistral:7b", cfg.ModelName)
	assert.Equal(t, 10*time.Second, cfg.ModelTimeout)
	assert.False(t, cfg.Cleanup)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("FORMS_AI_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Setenv("FORMS_AI_CONFIG", "")
	t.Setenv("DATA_DIR", "")

	t.Run("gemini requires key", func(t *testing.T) {
		t.Setenv("FORMS_AI_MODEL_PROVIDER", "gemini")
		t.Setenv("GEMINI_API_KEY", "")
		_, err := Load()
		assert.ErrorContains(t, err, "GEMINI_API_KEY")
	})

	t.Run("unknown provider", func(t *testing.T) {
		t.Setenv("FORMS_AI_MODEL_PROVIDER", "llamafile")
		_, err := Load()
		assert.ErrorContains(t, err, "unsupported model provider")
	})
}
