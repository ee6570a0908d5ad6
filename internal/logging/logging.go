// Package logging builds the process logger and attaches it to the event
// bus.
package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hanpama/fieldcover/internal/eventbus"
	"github.com/hanpama/fieldcover/internal/events"
	"github.com/hanpama/fieldcover/internal/reqid"
)

// Config selects level, format and destination.
type Config struct {
	// Level is a zerolog level name; empty means info.
	Level string
	// Format is "json" or "console".
	Format string
	// Output is "stdout", "stderr" or a file path. Empty means stderr.
	Output string
}

// New builds a logger from cfg. The returned closer releases the output
// file, if one was opened.
func New(cfg Config) (zerolog.Logger, io.Closer, error) {
	var (
		w      io.Writer
		closer io.Closer = nopCloser{}
	)
	switch cfg.Output {
	case "", "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log output: %w", err)
		}
		w, closer = f, f
	}
	l, err := NewWriter(w, cfg)
	if err != nil {
		closer.Close()
		return zerolog.Nop(), nil, err
	}
	return l, closer, nil
}

// NewWriter is New with an explicit destination.
func NewWriter(w io.Writer, cfg Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		lv, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log level: %w", err)
		}
		level = lv
	}
	switch cfg.Format {
	case "", "json":
	case "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	default:
		return zerolog.Nop(), fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Subscribe logs evaluation, provider, remote and HTTP lifecycle events
// from the global bus. Successful steps go to debug, failures to warn.
func Subscribe(l zerolog.Logger) (unsubscribe func()) {
	l = l.With().Str("component", "fieldcover").Logger()
	unsubs := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.EvalFinish) {
			ev := withRequest(ctx, l, e.Err).
				Strs("query", e.Query).
				Strs("providers", e.Providers).
				Dur("took", e.Duration)
			ev.Msg("eval")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.ProviderFinish) {
			withRequest(ctx, l, e.Err).
				Str("provider", e.Provider).
				Dur("took", e.Duration).
				Msg("provider")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.RemoteCallFinish) {
			withRequest(ctx, l, e.Err).
				Str("method", e.Method).
				Str("target", e.Target).
				Stringer("code", e.Code).
				Dur("took", e.Duration).
				Msg("remote call")
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPFinish) {
			ev := l.Info()
			if e.Status >= 500 {
				ev = l.Error()
			}
			if id, ok := reqid.FromContext(ctx); ok {
				ev = ev.Str("request_id", id)
			}
			ev.Str("method", e.Request.Method).
				Str("path", e.Request.URL.Path).
				Int("status", e.Status).
				Int("queries", e.Queries).
				Dur("took", e.Duration).
				Msg("http")
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func withRequest(ctx context.Context, l zerolog.Logger, err error) *zerolog.Event {
	ev := l.Debug()
	if err != nil {
		ev = l.Warn().Err(err)
	}
	if id, ok := reqid.FromContext(ctx); ok {
		ev = ev.Str("request_id", id)
	}
	return ev
}
