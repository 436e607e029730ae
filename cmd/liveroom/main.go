package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/liveroom/internal/commands"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// Console output until the config picks the real sink.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	err := commands.ExecuteContext(ctx)
	cancel()
	if err != nil {
		log.Error().Err(err).Msg("liveroom")
		os.Exit(1)
	}
}
