package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"formsai/internal/logger"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string

	InputDir  string
	JSONDir   string
	ImagesDir string

	LogLevel string
	LogColor bool
	Debug    bool

	ModelProvider    string
	ModelName        string
	OllamaBinary     string
	GeminiAPIKey     string
	ModelTimeout     time.Duration
	ModelMaxAttempts int
	ModelStreaming   bool
	OfflineFallback  bool
	KillGrace        time.Duration
	AnswerCacheTTL   time.Duration

	OCREnabled   bool
	OCRBinary    string
	OCRLanguages string

	Cleanup      bool
	RetainImages bool

	Headless          bool
	NavigationTimeout time.Duration

	DiscoveryURL   string
	DiscoveryDepth int

	OpenSearchURL   string
	OpenSearchIndex string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	TaskMaxRetries int
}

// source resolves a key from the process environment first, then from the
// optional YAML file, which uses the same variable names as keys.
type source struct {
	file map[string]string
}

func (s source) lookup(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return s.file[key]
}

func (s source) getenv(key, def string) string {
	v := s.lookup(key)
	if v == "" {
		return def
	}
	return v
}

func (s source) getenvInt(key string, def int) int {
	v := s.lookup(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func (s source) getenvBool(key string, def bool) bool {
	v := strings.TrimSpace(s.lookup(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getenvDuration accepts Go durations ("35s") or a bare number of seconds.
func (s source) getenvDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(s.lookup(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return def
}

func readFile(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}

// Load builds the configuration from FORMS_AI_CONFIG (or ./config.yaml when
// present) overlaid by the environment.
func Load() (Config, error) {
	src := source{}
	path := os.Getenv("FORMS_AI_CONFIG")
	explicit := path != ""
	if !explicit {
		path = "config.yaml"
	}
	file, err := readFile(path)
	switch {
	case err == nil:
		src.file = file
	case explicit || !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("config file: %w", err)
	}
	return src.load()
}

func (s source) load() (Config, error) {
	dataDir := s.getenv("DATA_DIR", "./data")
	cfg := Config{
		AppEnv:        s.getenv("APP_ENV", "development"),
		HTTPAddr:      s.getenv("HTTP_ADDR", ":8081"),
		RedisAddr:     s.lookup("REDIS_ADDR"),
		RedisPassword: s.lookup("REDIS_PASSWORD"),
		DataDir:       dataDir,

		InputDir:  s.getenv("FORMS_AI_INPUT_DIR", filepath.Join(dataDir, "input")),
		JSONDir:   s.getenv("FORMS_AI_JSON_DIR", filepath.Join(dataDir, "output", "jsons")),
		ImagesDir: s.getenv("FORMS_AI_IMAGES_DIR", filepath.Join(dataDir, "output", "images")),

		LogLevel: strings.ToUpper(s.getenv("FORMS_AI_LOG_LEVEL", "INFO")),
		LogColor: s.getenvBool("FORMS_AI_LOG_COLOR", true),
		Debug:    s.getenvBool("FORMS_AI_DEBUG", false),

		ModelProvider:    strings.ToLower(s.getenv("FORMS_AI_MODEL_PROVIDER", "ollama")),
		ModelName:        s.getenv("FORMS_AI_MODEL", "qwen3:8b"),
		OllamaBinary:     s.getenv("FORMS_AI_OLLAMA_BIN", "ollama"),
		GeminiAPIKey:     s.lookup("GEMINI_API_KEY"),
		ModelTimeout:     s.getenvDuration("FORMS_AI_MODEL_TIMEOUT", 35*time.Second),
		ModelMaxAttempts: s.getenvInt("FORMS_AI_MODEL_MAX_ATTEMPTS", 2),
		ModelStreaming:   s.getenvBool("FORMS_AI_MODEL_STREAMING", false),
		OfflineFallback:  s.getenvBool("FORMS_AI_OFFLINE_FALLBACK", true),
		KillGrace:        s.getenvDuration("FORMS_AI_KILL_GRACE", 2*time.Second),
		AnswerCacheTTL:   s.getenvDuration("FORMS_AI_ANSWER_CACHE_TTL", 24*time.Hour),

		OCREnabled:   s.getenvBool("FORMS_AI_OCR_ENABLED", true),
		OCRBinary:    s.getenv("FORMS_AI_OCR_BIN", "tesseract"),
		OCRLanguages: s.getenv("FORMS_AI_OCR_LANGS", "eng+fra+deu"),

		Cleanup:      s.getenvBool("FORMS_AI_CLEANUP", true),
		RetainImages: s.getenvBool("FORMS_AI_RETAIN_IMAGES", false),

		Headless:          s.getenvBool("FORMS_AI_HEADLESS", true),
		NavigationTimeout: s.getenvDuration("FORMS_AI_NAV_TIMEOUT", 20*time.Second),

		DiscoveryURL:   s.lookup("FORMS_AI_DISCOVERY_URL"),
		DiscoveryDepth: s.getenvInt("FORMS_AI_DISCOVERY_DEPTH", 1),

		OpenSearchURL:   s.lookup("OPENSEARCH_URL"),
		OpenSearchIndex: s.getenv("OPENSEARCH_INDEX", "forms_ai"),

		SupabaseURL:        s.lookup("NEXT_PUBLIC_SUPABASE_URL"),
		SupabaseServiceKey: s.lookup("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     s.getenv("SUPABASE_STORAGE_BUCKET", "forms"),

		TaskMaxRetries: s.getenvInt("TASK_MAX_RETRIES", 0),
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.ModelProvider {
	case "ollama":
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
	default:
		return fmt.Errorf("unsupported model provider %q", c.ModelProvider)
	}
	if c.ModelTimeout <= 0 {
		return fmt.Errorf("FORMS_AI_MODEL_TIMEOUT must be positive")
	}
	if c.ModelMaxAttempts < 1 {
		return fmt.Errorf("FORMS_AI_MODEL_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

// Logging is the logger configuration shared by every component.
func (c Config) Logging() logger.Config {
	return logger.Config{Level: logger.LogLevel(c.LogLevel), Color: c.LogColor, AppEnv: c.AppEnv}
}
