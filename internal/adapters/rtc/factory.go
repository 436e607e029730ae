// Package rtc is an in-process audio/video engine built on pion/webrtc.
// Rooms live in a shared rooms.Hub; playing a stream connects a loopback
// PeerConnection pair to the publisher's track.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/dkeye/liveroom/internal/rooms"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrEngineAlive      = errors.New("engine instance already alive")
	ErrNotLoggedIn      = errors.New("not logged into room")
	ErrAlreadyLoggedIn  = errors.New("already logged into a room")
	ErrAlreadyPlaying   = errors.New("stream already playing")
	ErrNotPlaying       = errors.New("stream not playing")
	ErrNotPublishing    = errors.New("stream not publishing")
	ErrAlreadyPublished = errors.New("already publishing another stream")
	ErrUnknownSurface   = errors.New("no sink for surface handle")
	ErrDestroyed        = errors.New("engine destroyed")
)

// SinkResolver maps a surface handle to what draws into it.
type SinkResolver interface {
	Sink(domain.SurfaceHandle) (core.Sink, bool)
}

type Config struct {
	ICEServers []string
	FPS        int
}

// Factory hands out at most one live Engine at a time.
type Factory struct {
	cfg   Config
	hub   *rooms.Hub
	sinks SinkResolver

	mu   sync.Mutex
	live *Engine
}

func NewFactory(cfg Config, hub *rooms.Hub, sinks SinkResolver) *Factory {
	return &Factory{cfg: cfg, hub: hub, sinks: sinks}
}

func (f *Factory) Create(ctx context.Context, profile domain.Profile) (core.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live != nil {
		return nil, ErrEngineAlive
	}
	api, err := newAPI()
	if err != nil {
		return nil, err
	}
	f.live = newEngine(api, f.cfg, f.hub, f.sinks, profile)
	log.Info().Str("module", "rtc").Uint32("app_id", profile.AppID).Str("scenario", profile.Scenario.String()).Msg("engine created")
	return f.live, nil
}

// Destroy tears down whichever engine is alive. No live engine is not an error.
func (f *Factory) Destroy(ctx context.Context) error {
	f.mu.Lock()
	e := f.live
	f.live = nil
	f.mu.Unlock()
	if e == nil {
		log.Debug().Str("module", "rtc").Msg("destroy: no live engine")
		return nil
	}
	e.destroy(ctx)
	log.Info().Str("module", "rtc").Msg("engine destroyed")
	return nil
}

// Live reports whether an engine instance exists.
func (f *Factory) Live() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.live != nil
}

func newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir)), nil
}
