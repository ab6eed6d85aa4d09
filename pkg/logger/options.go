package logger

import (
	"io"
	"log/slog"
)

// Format selects the handler behind a logger.
type Format int

const (
	// FormatText is slog's key=value text handler.
	FormatText Format = iota

	// FormatPretty is the charmbracelet/log handler used on a terminal.
	FormatPretty

	// FormatJSON writes one JSON record per line, for log files.
	FormatJSON
)

// Option configures a logger created with New.
type Option func(*config)

// WithLevel sets the minimum level that is written.
func WithLevel(level slog.Level) Option {
	return func(c *config) {
		c.level = level
	}
}

// WithDebug lowers the level to Debug when debug is set. The --debug flag
// of every trickle command maps onto it.
func WithDebug(debug bool) Option {
	if !debug {
		return WithLevel(slog.LevelInfo)
	}
	return WithLevel(slog.LevelDebug)
}

// WithFormat picks the output handler.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithWriter sends records to w. More than one writer is combined with
// io.MultiWriter. Defaults to os.Stdout.
func WithWriter(w ...io.Writer) Option {
	return func(c *config) {
		c.writers = w
	}
}

// WithComponent tags every record with component=name, e.g. "session" or
// "producer", so interleaved log files can be filtered.
func WithComponent(name string) Option {
	return func(c *config) {
		c.component = name
	}
}

// WithSource adds the caller's file:line to each record.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
