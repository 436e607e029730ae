package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	router "github.com/dkeye/liveroom/internal/adapters/http"
	"github.com/dkeye/liveroom/internal/adapters/permission"
	"github.com/dkeye/liveroom/internal/adapters/rtc"
	"github.com/dkeye/liveroom/internal/adapters/signal"
	"github.com/dkeye/liveroom/internal/adapters/surface"
	"github.com/dkeye/liveroom/internal/app"
	"github.com/dkeye/liveroom/internal/app/session"
	"github.com/dkeye/liveroom/internal/config"
	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/dkeye/liveroom/internal/logging"
	"github.com/dkeye/liveroom/internal/metrics"
	"github.com/dkeye/liveroom/internal/rooms"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type JoinCmd struct {
	cobraCommand *cobra.Command
}

func NewJoin() *JoinCmd {
	return &JoinCmd{}
}

func (c *JoinCmd) Cobra() *cobra.Command {
	c.cobraCommand = &cobra.Command{
		Use:   "join",
		Short: "Start a session: join the room, preview, publish and play",
		RunE:  c.run,
	}
	flags := c.cobraCommand.Flags()
	flags.String("room", "", "Room ID to join")
	flags.String("stream", "", "Stream ID to publish")
	flags.String("play", "", "Stream ID to play (default: the published one)")
	flags.String("user", "", "User ID (default: generated)")
	return c.cobraCommand
}

// loadConfig reads the config file and applies flag overrides on top.
func (c *JoinCmd) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		flags         = cmd.Flags()
		path, _       = flags.GetString("config")
		roomID, _     = flags.GetString("room")
		streamID, _   = flags.GetString("stream")
		playStream, _ = flags.GetString("play")
		userID, _     = flags.GetString("user")
	)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if roomID != "" {
		cfg.Session.RoomID = roomID
	}
	if streamID != "" {
		cfg.Session.StreamID = streamID
	}
	if playStream != "" {
		cfg.Session.PlayStreamID = playStream
	}
	if userID != "" {
		cfg.Session.UserID = userID
	}
	return cfg, cfg.Validate()
}

func (c *JoinCmd) run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	closer, err := logging.Setup(cfg.Log)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closer.Close()

	identity, err := domain.NewSessionIdentity(
		domain.RoomID(cfg.Session.RoomID),
		domain.UserID(cfg.Session.UserID),
		cfg.Session.Username,
		domain.StreamID(cfg.Session.StreamID),
	)
	if err != nil {
		return fmt.Errorf("session identity: %w", err)
	}
	playStream := domain.StreamID(cfg.Session.PlayStreamID)
	if playStream != "" {
		if err := playStream.Validate(); err != nil {
			return fmt.Errorf("play stream: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	hub := rooms.NewHub()
	board := surface.NewBoard()
	factory := rtc.NewFactory(rtc.Config{ICEServers: cfg.Engine.ICEServers, FPS: cfg.Capture.FPS}, hub, board)

	var ctrl *session.Controller
	feed := signal.NewFeed(signal.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}, func() session.Status { return ctrl.Status() })

	ctrl = session.New(session.Options{
		Identity:        identity,
		PlayStreamID:    playStream,
		Profile:         cfg.Profile(),
		RoomConfig:      cfg.Session.RoomConfig(),
		ViewMode:        cfg.Session.Mode(),
		BackgroundColor: cfg.Session.BackgroundColor,
		Facing:          cfg.Session.Facing(),
		SurfaceTimeout:  cfg.Session.SurfaceTimeout,
	}, session.Deps{
		Permissions: permission.ForPlatform(domain.Platform(cfg.Platform), permission.Bridges{}, cfg.Session.Permissions()),
		Factory:     factory,
		Lease:       app.NewEngineLease(),
		Local:       board.Local(),
		Remote:      board.Remote(),
		Observers:   []core.EventHandler{feed},
		Metrics:     m,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Session:  ctrl,
		Board:    board,
		Rooms:    hub,
		Feed:     feed,
		Gatherer: reg,
	})
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("liveroom server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		updates, unsubscribe := ctrl.Watch()
		defer unsubscribe()
		feed.Follow(gctx, updates)
		return nil
	})
	g.Go(func() error {
		if err := ctrl.Start(gctx); err != nil && !errors.Is(err, session.ErrTornDown) {
			// the session stays up in Error so the UI can show why
			log.Error().Err(err).Msg("session startup failed")
		}
		return nil
	})
	if cfg.Session.AutoMount {
		g.Go(func() error {
			for _, side := range []string{surface.SideLocal, surface.SideRemote} {
				if _, err := board.Mount(side, nil); err != nil {
					log.Warn().Err(err).Str("side", side).Msg("auto mount")
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		ctrl.Teardown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("liveroom exited")
	return err
}
