package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Leveled logger shared by the API server, the admin CLI and background jobs.
// Call Init early during startup; the default level is info.

var (
	mu  sync.RWMutex
	out io.Writer = os.Stdout
	log           = zerolog.New(os.Stdout).With().Timestamp().Logger().Level(zerolog.InfoLevel)
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}

// Init sets the global log level (debug, info, warn, error, fatal; case-insensitive).
// Unknown values fall back to info.
func Init(level string) {
	InitWithFormat(level, "")
}

// InitWithFormat is Init plus an output format: "console" for human-readable lines,
// anything else for JSON.
func InitWithFormat(level, format string) {
	mu.Lock()
	defer mu.Unlock()
	var w io.Writer = out
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: true}
	}
	log = zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(level))
}

// SetOutput redirects log output; used by tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	log = log.Output(w)
}

func parseLevel(l string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// L returns the underlying zerolog logger for structured events.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

func Debugf(format string, v ...interface{}) { L().Debug().Msg(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { L().Info().Msg(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { L().Warn().Msg(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { L().Error().Msg(fmt.Sprintf(format, v...)) }

// Fatalf logs regardless of level and exits.
func Fatalf(format string, v ...interface{}) {
	l := L().Level(zerolog.TraceLevel)
	l.WithLevel(zerolog.FatalLevel).Msg(fmt.Sprintf(format, v...))
	os.Exit(1)
}

// LevelString returns the current level as text.
func LevelString() string {
	switch L().GetLevel() {
	case zerolog.DebugLevel:
		return "debug"
	case zerolog.WarnLevel:
		return "warn"
	case zerolog.ErrorLevel:
		return "error"
	case zerolog.FatalLevel:
		return "fatal"
	}
	return "info"
}
