package treestore

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var logLevel = new(slog.LevelVar)

// ConfigureLogging installs the default logger for the treestore binaries.
// TREESTORE_LOG_LEVEL picks the level (debug, info, warn, error; any case) and
// TREESTORE_LOG_FORMAT=json switches from text to JSON lines.
func ConfigureLogging() {
	slog.SetDefault(NewLogger(os.Stdout, os.Getenv("TREESTORE_LOG_LEVEL"), os.Getenv("TREESTORE_LOG_FORMAT")))
}

// NewLogger builds a logger writing to w whose level follows SetLogLevel.
// Unknown levels fall back to info.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	logLevel.Set(lvl)

	opts := &slog.HandlerOptions{Level: logLevel}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With("service", "treestore")
}

// SetLogLevel changes the level of every logger built by NewLogger.
func SetLogLevel(level slog.Level) {
	logLevel.Set(level)
}
