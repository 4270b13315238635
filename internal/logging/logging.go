// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"

	"github.com/macworld/concierge/internal/config"
)

// Preinit installs a console logger so that anything logged before the
// config is read still reaches stderr.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: slog.LevelInfo,
	})))
}

// ParseLevel maps a config level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// Init routes records to the console and, when cfg.File is set, to a JSON
// log file as well. Errors are always written to the file regardless of
// level. The returned closer releases the file.
func Init(cfg config.LogConfig) (io.Closer, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	h, closer, err := NewHandler(os.Stderr, cfg.File, lvl)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(h))
	return closer, nil
}

// NewHandler builds the console/file handler pair without installing it.
func NewHandler(console io.Writer, file string, lvl slog.Level) (slog.Handler, io.Closer, error) {
	router := slogmulti.Router().Add(newConsoleHandler(console, lvl))

	var closer io.Closer = nopCloser{}
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file %s: %w", file, err)
		}
		closer = f

		router = router.Add(
			slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}),
			func(_ context.Context, r slog.Record) bool {
				return r.Level >= lvl || r.Level >= slog.LevelError
			},
		)
	}

	return router.Handler(), closer, nil
}

func newConsoleHandler(w io.Writer, lvl slog.Level) slog.Handler {
	return console.NewHandler(w, &console.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
