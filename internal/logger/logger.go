package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Logger struct {
	*zerolog.Logger
	component string
}

// LogLevel represents our custom log levels
type LogLevel string

const (
	LevelDebug   LogLevel = "DEBUG"
	LevelInfo    LogLevel = "INFO"
	LevelSuccess LogLevel = "SUCCESS"
	LevelWarn    LogLevel = "WARN"
	LevelError   LogLevel = "ERROR"
)

// Components used across the pipeline.
const (
	ComponentPipeline = "PIPELINE"
	ComponentLinks    = "LINKS"
	ComponentScrape   = "SCRAPE"
	ComponentValidate = "VALIDATE"
	ComponentOCR      = "OCR"
	ComponentLLM      = "LLM"
	ComponentCleanup  = "CLEANUP"
	ComponentPublish  = "PUBLISH"
	ComponentServer   = "SERVER"
)

var (
	// Default levels when no explicit level is configured
	envLevel = map[string]zerolog.Level{
		"development": zerolog.DebugLevel,
		"staging":     zerolog.InfoLevel,
		"production":  zerolog.InfoLevel,
	}
)

// Config is built once per process run and handed to every component that logs.
type Config struct {
	Level  LogLevel
	Color  bool
	AppEnv string
	Out    io.Writer
}

// ConfigFromEnv reads FORMS_AI_LOG_LEVEL and FORMS_AI_LOG_COLOR.
func ConfigFromEnv() Config {
	color := true
	if v := strings.TrimSpace(os.Getenv("FORMS_AI_LOG_COLOR")); v != "" {
		color = v != "0" && !strings.EqualFold(v, "false")
	}
	return Config{
		Level:  LogLevel(strings.ToUpper(strings.TrimSpace(os.Getenv("FORMS_AI_LOG_LEVEL")))),
		Color:  color,
		AppEnv: os.Getenv("APP_ENV"),
	}
}

// For derives a component logger from this configuration.
func (c Config) For(component string) *Logger {
	return NewWithConfig(component, c)
}

// New creates a logger for a component using the environment configuration
func New(component string) *Logger {
	return NewWithConfig(component, ConfigFromEnv())
}

// NewWithConfig creates a new logger instance with custom configuration
func NewWithConfig(component string, config Config) *Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	out := config.Out
	if out == nil {
		out = os.Stdout
	}

	output := zerolog.ConsoleWriter{
		Out:     out,
		NoColor: !config.Color,
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("[%s] %s", component, i)
		},
		FormatLevel: func(i interface{}) string {
			level, ok := i.(string)
			if !ok {
				return "???"
			}
			if !config.Color {
				return "[" + strings.ToUpper(level) + "]"
			}
			switch level {
			case "debug":
				return "\033[36m[DEBUG]\033[0m"
			case "info":
				return "\033[34m[INFO]\033[0m"
			case "success":
				return "\033[32m[SUCCESS]\033[0m"
			case "warn":
				return "\033[33m[WARN]\033[0m"
			case "error":
				return "\033[31m[ERROR]\033[0m"
			case "fatal":
				return "\033[35m[FATAL]\033[0m"
			default:
				return fmt.Sprintf("[%s]", level)
			}
		},
	}

	production := config.AppEnv == "production"
	if production {
		output.TimeFormat = ""
	} else {
		output.TimeFormat = "2006-01-02 15:04:05"
	}

	ctx := zerolog.New(output).Level(config.zerologLevel()).With().Str("component", component)
	if !production {
		ctx = ctx.Timestamp()
	}
	logger := ctx.Logger()

	return &Logger{
		Logger:    &logger,
		component: component,
	}
}

func (c Config) zerologLevel() zerolog.Level {
	switch c.Level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo, LevelSuccess:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	}
	if level, ok := envLevel[c.AppEnv]; ok {
		return level
	}
	return zerolog.InfoLevel
}

// Component returns the component tag attached to every record.
func (l *Logger) Component() string { return l.component }

func (l *Logger) Debug() *zerolog.Event   { return l.Logger.Debug() }
func (l *Logger) Info() *zerolog.Event    { return l.Logger.Info() }
func (l *Logger) Success() *zerolog.Event { return l.Logger.Info().Str("level", "success") }
func (l *Logger) Warn() *zerolog.Event    { return l.Logger.Warn() }
func (l *Logger) Error() *zerolog.Event   { return l.Logger.Error() }

func (l *Logger) LogDebug(msg string) {
	l.Debug().Msg(msg)
}

func (l *Logger) LogInfo(msg string) {
	l.Info().Msg(msg)
}

func (l *Logger) LogSuccess(msg string) {
	l.Success().Msg(msg)
}

func (l *Logger) LogWarn(msg string) {
	l.Warn().Msg(msg)
}

func (l *Logger) LogError(msg string, err error) {
	if err != nil {
		l.Error().Err(err).Msg(msg)
		return
	}
	l.Error().Msg(msg)
}

func (l *Logger) LogDebugf(format string, v ...interface{}) {
	l.Debug().Msgf(format, v...)
}

func (l *Logger) LogInfof(format string, v ...interface{}) {
	l.Info().Msgf(format, v...)
}

func (l *Logger) LogSuccessf(format string, v ...interface{}) {
	l.Success().Msgf(format, v...)
}

func (l *Logger) LogWarnf(format string, v ...interface{}) {
	l.Warn().Msgf(format, v...)
}

func (l *Logger) LogErrorf(format string, v ...interface{}) {
	l.Error().Msgf(format, v...)
}

// WithFields adds fields to the log event
func (l *Logger) WithFields(fields map[string]interface{}) *zerolog.Event {
	event := l.Info()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	return event
}

// ErrorWithFields adds fields to an error event
func (l *Logger) ErrorWithFields(fields map[string]interface{}) *zerolog.Event {
	event := l.Error()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	return event
}

var ansiPattern = regexp.MustCompile("\x1B\\[[0-9;]*[a-zA-Z]")

// StripANSI removes ANSI color codes from a string
func StripANSI(str string) string {
	return ansiPattern.ReplaceAllString(str, "")
}
