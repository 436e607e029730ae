// Package surface stands in for the UI rendering surfaces the engine draws into.
package surface

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyMounted = errors.New("surface already mounted")
	ErrNotMounted     = errors.New("surface not mounted")
	ErrUnknownSide    = errors.New("unknown surface side")
)

// Slot is one rendering surface. Await returns once Mount has resolved a handle,
// so callers wait for the mount signal instead of sleeping.
type Slot struct {
	side string

	mu     sync.Mutex
	handle domain.SurfaceHandle
	sink   core.Sink
	ready  chan struct{}
}

func NewSlot(side string) *Slot {
	return &Slot{side: side, ready: make(chan struct{})}
}

func (s *Slot) Side() string { return s.side }

func (s *Slot) Mount(handle domain.SurfaceHandle, sink core.Sink) error {
	if handle == 0 {
		return domain.ErrSurfaceUnbound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != 0 {
		return ErrAlreadyMounted
	}
	s.handle, s.sink = handle, sink
	close(s.ready)
	log.Info().Str("module", "surface").Str("side", s.side).Uint64("handle", uint64(handle)).Msg("mounted")
	return nil
}

// Unmount detaches the surface. Later Await calls block until the next Mount.
func (s *Slot) Unmount() (domain.SurfaceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == 0 {
		return 0, ErrNotMounted
	}
	h := s.handle
	s.handle, s.sink = 0, nil
	s.ready = make(chan struct{})
	log.Info().Str("module", "surface").Str("side", s.side).Uint64("handle", uint64(h)).Msg("unmounted")
	return h, nil
}

func (s *Slot) Await(ctx context.Context) (domain.SurfaceHandle, error) {
	for {
		s.mu.Lock()
		h, ready := s.handle, s.ready
		s.mu.Unlock()
		if h != 0 {
			return h, nil
		}
		select {
		case <-ready:
			// re-check: an Unmount may have raced the wakeup
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}

func (s *Slot) Handle() (domain.SurfaceHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle, s.handle != 0
}
