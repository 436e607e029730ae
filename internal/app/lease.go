package app

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

var ErrLeaseHeld = errors.New("engine lease held by another owner")

// EngineLease guards the one live engine instance a process may have.
// The composition root creates a single lease and hands it to every controller.
type EngineLease struct {
	mu     sync.Mutex
	holder string
}

func NewEngineLease() *EngineLease {
	return &EngineLease{}
}

// Acquire takes the lease for owner. Re-acquiring by the current holder fails too:
// the holder must Release before creating another engine.
func (l *EngineLease) Acquire(owner string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != "" {
		log.Warn().Str("module", "app.lease").Str("owner", owner).Str("holder", l.holder).Msg("lease busy")
		return ErrLeaseHeld
	}
	l.holder = owner
	log.Info().Str("module", "app.lease").Str("owner", owner).Msg("lease acquired")
	return nil
}

// Release gives the lease back. Releasing a lease owned by someone else is a no-op.
func (l *EngineLease) Release(owner string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.holder != owner {
		return false
	}
	l.holder = ""
	log.Info().Str("module", "app.lease").Str("owner", owner).Msg("lease released")
	return true
}

func (l *EngineLease) Holder() (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.holder, l.holder != ""
}
