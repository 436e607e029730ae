// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"

	"github.com/dkeye/liveroom/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup points the global logger at stderr, and at a rotating file when one is configured.
// The returned closer flushes the file; it is a no-op without one.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stderr
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     14,
		}
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	log.Info().Str("module", "logging").Str("level", level.String()).Str("format", cfg.Format).Str("file", cfg.File).Msg("logger ready")
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
