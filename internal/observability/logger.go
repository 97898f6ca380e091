package observability

import (
	"io"
	"log/slog"
	"os"

	"github.com/Lllllllleong/trafficadvisoryflow/internal/config"
)

// NewLogger builds a slog logger from the log configuration. Unknown levels
// fall back to info; any format other than "text" produces JSON.
func NewLogger(cfg config.LogConfig) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
