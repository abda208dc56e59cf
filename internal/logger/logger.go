// Package logger configures the process-wide structured logger.
//
// RecoverLoop logs a recovered panic with a stack trace. No background
// loop in this module calls it: the generator loop logs the errors its
// steps return and keeps running, but a panic is not recovered.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime/debug"

	slogmulti "github.com/samber/slog-multi"
)

// Format selects the on-disk/console encoding of log records.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Args configures New.
type Args struct {
	Level   slog.Level
	Format  Format
	Quiet   bool
	LogFile string // optional: tee to this file in addition to stdout
}

// New builds the shared *slog.Logger for the process. When LogFile is set,
// records fan out to both stdout and the file via slog-multi, mirroring
// the teacher's tee-to-file console/log-file duplication.
func New(args Args) (*slog.Logger, func() error, error) {
	var writers []io.Writer
	if !args.Quiet {
		writers = append(writers, os.Stdout)
	}

	closer := func() error { return nil }
	if args.LogFile != "" {
		f, err := os.OpenFile(args.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file %q: %w", args.LogFile, err)
		}
		writers = append(writers, f)
		closer = f.Close
	}
	if len(writers) == 0 {
		writers = append(writers, io.Discard)
	}

	opts := &slog.HandlerOptions{Level: args.Level}
	handlers := make([]slog.Handler, 0, len(writers))
	for _, w := range writers {
		if args.Format == FormatJSON {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(w, opts))
		}
	}

	var handler slog.Handler
	if len(handlers) == 1 {
		handler = handlers[0]
	} else {
		handler = slogmulti.Fanout(handlers...)
	}

	return slog.New(handler), closer, nil
}

// RecoverLoop wraps a background loop body so a panic is logged with its
// stack trace instead of killing the process; the loop's own stop channel
// remains the only intended way to end it.
func RecoverLoop(ctx context.Context, log *slog.Logger, name string, body func()) {
	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "background loop panicked, recovered",
				"loop", name, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	body()
}
