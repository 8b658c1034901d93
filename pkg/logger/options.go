package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger built with New.
type Option func(*config)

// WithDebug lowers the level to Debug, where per-record skips and task
// retries are reported.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the charmbracelet/log handler for terminals.
func WithPretty(pretty bool) Option {
	return func(c *config) { c.pretty = pretty }
}

// WithJSON selects slog's JSON handler, used for job log files. It takes
// precedence over WithPretty.
func WithJSON(json bool) Option {
	return func(c *config) { c.json = json }
}

// WithWriter sets the destination. Defaults to os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.w = w }
}

// WithJob tags every record with the job (command) name.
func WithJob(name string) Option {
	return func(c *config) { c.job = name }
}
