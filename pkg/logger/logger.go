// Package logger provides opinionated logging for hvision jobs and commands.
//
// Every logger is a *slog.Logger. Terminals get the charmbracelet/log
// handler, job log files get slog's JSON handler, anything else gets slog's
// text handler.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	pretty bool
	json   bool
	job    string
	w      io.Writer
}

// New builds a logger. Without options it writes text records at Info level
// to os.Stderr, keeping stdout free for command output.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, w: os.Stderr}
	for _, opt := range opts {
		opt(c)
	}

	var h slog.Handler
	switch {
	case c.json:
		h = slog.NewJSONHandler(c.w, &slog.HandlerOptions{Level: c.level})
	case c.pretty:
		h = charmlog.NewWithOptions(c.w, charmlog.Options{
			Level:           charmLevel(c.level),
			ReportTimestamp: true,
			Prefix:          c.job,
		})
	default:
		h = slog.NewTextHandler(c.w, &slog.HandlerOptions{Level: c.level})
	}

	l := slog.New(h)
	if c.job != "" && (c.json || !c.pretty) {
		l = l.With("job", c.job)
	}
	return l
}

// Nop returns a logger that discards every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func charmLevel(l slog.Level) charmlog.Level {
	switch {
	case l <= slog.LevelDebug:
		return charmlog.DebugLevel
	case l >= slog.LevelError:
		return charmlog.ErrorLevel
	case l >= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.InfoLevel
	}
}
