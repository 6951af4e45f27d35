package util

import (
	"io"
	"os"
	"strings"
	"time"

	stdlog "log"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Logger = zerolog.Logger

// LogLevel represents available log levels
type LogLevel = int

// Log levels
const (
	TraceLevel LogLevel = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

var zerologLevels = map[LogLevel]zerolog.Level{
	TraceLevel: zerolog.TraceLevel,
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// ZerologLevel converts a LogLevel, falling back to info for unknown values
func ZerologLevel(level LogLevel) zerolog.Level {
	if l, ok := zerologLevels[level]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// InitializeLogger sets up the global logger with the specified configuration.
// Console output is human friendly; json writes one object per line for
// log shippers.
func InitializeLogger(level LogLevel, json bool) {
	InitializeLoggerTo(os.Stdout, level, json)
}

// InitializeLoggerTo is [InitializeLogger] writing to w
func InitializeLoggerTo(w io.Writer, level LogLevel, json bool) {
	// Set time format to ISO8601
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(ZerologLevel(level))

	out := w
	if !json {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).With().Timestamp()
	if level == TraceLevel {
		ctx = ctx.Caller()
	}
	log.Logger = ctx.Logger()
	log.Debug().Msg("Logger initialized")
}

// GetLogger returns a configured logger for a specific component
func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// zerologWriter wraps zerolog to implement io.Writer for stdlog
type zerologWriter struct {
	logger zerolog.Logger
	level  zerolog.Level
}

func (w zerologWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	// Remove stdlog prefix if present (timestamp and flags)
	if idx := strings.LastIndex(msg, ": "); idx != -1 && idx < len(msg)-2 {
		msg = msg[idx+2:]
	}
	w.logger.WithLevel(w.level).Msg(msg)

	return len(p), nil
}

// NewLogLogger returns a stdlog.Logger that routes to zerolog, for libraries
// (go-fuse) that only accept the standard logger.
func NewLogLogger(component string, lvl LogLevel) *stdlog.Logger {
	logger := log.With().Str("component", component).Logger()
	writer := zerologWriter{logger: logger, level: ZerologLevel(lvl)}

	return stdlog.New(writer, "", 0)
}
