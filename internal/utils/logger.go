package utils

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	loggerMu sync.RWMutex
	logger   = zerolog.New(os.Stderr).With().Timestamp().Logger()
)

// InitLogger configures the global logger. When file is non-empty, output is
// rotated with lumberjack and mirrored to stderr.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	var out io.Writer = os.Stderr
	if file != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		})
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	loggerMu.Lock()
	logger = zerolog.New(out).With().Timestamp().Logger().Level(lvl)
	loggerMu.Unlock()
}

// SetLogLevel changes the minimum level of the global logger at runtime.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	loggerMu.Lock()
	logger = logger.Level(lvl)
	loggerMu.Unlock()
}

// SetLoggerForTest replaces the global logger. Intended for tests that need
// to capture output.
func SetLoggerForTest(l zerolog.Logger) {
	loggerMu.Lock()
	logger = l
	loggerMu.Unlock()
}

func getLogger() zerolog.Logger {
	loggerMu.RLock()
	defer loggerMu.RUnlock()
	return logger
}

func emit(ev *zerolog.Event, msg string, kv ...interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

// Debug logs a debug message with alternating key/value pairs.
func Debug(msg string, kv ...interface{}) {
	l := getLogger()
	emit(l.Debug(), msg, kv...)
}

// Info logs an info message with alternating key/value pairs.
func Info(msg string, kv ...interface{}) {
	l := getLogger()
	emit(l.Info(), msg, kv...)
}

// Warn logs a warning with alternating key/value pairs.
func Warn(msg string, kv ...interface{}) {
	l := getLogger()
	emit(l.Warn(), msg, kv...)
}

// Error logs an error with alternating key/value pairs.
func Error(msg string, kv ...interface{}) {
	l := getLogger()
	emit(l.Error(), msg, kv...)
}
