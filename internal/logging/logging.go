// SPDX-License-Identifier: MPL-2.0

// Package logging builds the charmbracelet/log loggers shared by every
// component and adapts them to runner.LineHandler.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/openchami/image-builder/internal/runner"
	"github.com/openchami/image-builder/pkg/layerdef"
)

// Options configures New.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// Timestamps prefixes every entry with the wall-clock time.
	Timestamps bool
	// JSON switches to the JSON formatter for machine consumption.
	JSON bool
}

// New creates the root logger writing to w.
func New(w io.Writer, opts Options) (*log.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	lo := log.Options{
		Level:           level,
		ReportTimestamp: opts.Timestamps,
		TimeFormat:      time.DateTime,
	}
	if opts.JSON {
		lo.Formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, lo), nil
}

// ParseLevel maps a level name to a log.Level. Empty means info.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return log.InfoLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q (valid: debug, info, warn, error)", s)
	}
}

// HandlerFor returns a line handler that logs each line at the severity
// selected by level. Empty and unrecognized levels log at error.
func HandlerFor(logger *log.Logger, level layerdef.LogLevel, keyvals ...any) runner.LineHandler {
	var emit func(msg any, keyvals ...any)
	switch level.Normalized() {
	case layerdef.LogLevelDebug:
		emit = logger.Debug
	case layerdef.LogLevelInfo:
		emit = logger.Info
	case layerdef.LogLevelWarn:
		emit = logger.Warn
	default:
		emit = logger.Error
	}
	return func(line string) {
		emit(line, keyvals...)
	}
}

// Collect returns a handler that appends every line to dst.
func Collect(dst *[]string) runner.LineHandler {
	return func(line string) {
		*dst = append(*dst, line)
	}
}

// Tee returns a handler that calls every non-nil handler in order.
func Tee(handlers ...runner.LineHandler) runner.LineHandler {
	return func(line string) {
		for _, h := range handlers {
			if h != nil {
				h(line)
			}
		}
	}
}
