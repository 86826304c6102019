// Package logging provides the structured, leveled logger every non-RT
// goroutine in this repo uses, backed by charmbracelet/log (SPEC_FULL.md
// §10). The teacher's go.mod declares this dependency but its own
// src/log.go/src/textcolor.go hand-roll an ANSI colorizer instead; this
// package is the first real call site for it. RT audio/input callbacks
// never call into this package directly — they only set counters or
// push Beep requests that a non-RT goroutine drains and logs here
// (spec.md §7).
package logging

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Options configures the logger's sinks and verbosity, one-to-one with
// the CLI's --log-console/--log-file/--log-file-path/--log-level flags.
type Options struct {
	Console  bool
	FilePath string // empty disables the file sink
	Level    string // "debug", "info", "warn", "error"
}

// New builds a *log.Logger writing to the sinks Options selects. When
// both Console and FilePath are set, both receive every line (an
// io.MultiWriter fan-out); when neither is set, logging is discarded.
func New(opts Options) (*log.Logger, error) {
	var writers []io.Writer
	if opts.Console {
		writers = append(writers, os.Stderr)
	}
	if opts.FilePath != "" {
		f, err := os.OpenFile(opts.FilePath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return nil, err
		}
		writers = append(writers, f)
	}

	var dst io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		dst = writers[0]
	default:
		dst = io.MultiWriter(writers...)
	}

	logger := log.NewWithOptions(dst, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "2006-01-02 15:04:05",
	})
	logger.SetLevel(parseLevel(opts.Level))
	return logger, nil
}

func parseLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// Category mirrors the teacher's DW_COLOR_* classification (src/textcolor.go):
// a semantic tag for a log line beyond its severity level, carried as a
// structured field rather than an ANSI color code.
type Category string

const (
	CategoryInfo    Category = "info"
	CategoryError   Category = "error"
	CategoryRecord  Category = "record"
	CategoryDecoded Category = "decoded"
	CategoryXmit    Category = "xmit"
	CategoryDebug   Category = "debug"
)

// WithCategory returns a derived logger tagging every subsequent line
// with cat, the structured-logging equivalent of the teacher's
// text_color_set(DW_COLOR_*) calls preceding each dw_printf.
func WithCategory(l *log.Logger, cat Category) *log.Logger {
	return l.With("category", string(cat))
}
