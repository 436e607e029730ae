package surface

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
)

const (
	SideLocal  = "local"
	SideRemote = "remote"
)

// Board owns the local and remote slots and resolves handles back to sinks.
type Board struct {
	next   atomic.Uint64
	local  *Slot
	remote *Slot

	mu    sync.RWMutex
	sinks map[domain.SurfaceHandle]core.Sink
}

func NewBoard() *Board {
	return &Board{
		local:  NewSlot(SideLocal),
		remote: NewSlot(SideRemote),
		sinks:  make(map[domain.SurfaceHandle]core.Sink),
	}
}

func (b *Board) Local() *Slot  { return b.local }
func (b *Board) Remote() *Slot { return b.remote }

func (b *Board) Slot(side string) (*Slot, error) {
	switch side {
	case SideLocal:
		return b.local, nil
	case SideRemote:
		return b.remote, nil
	default:
		return nil, ErrUnknownSide
	}
}

// Mount allocates a fresh handle for side and attaches sink to it.
func (b *Board) Mount(side string, sink core.Sink) (domain.SurfaceHandle, error) {
	slot, err := b.Slot(side)
	if err != nil {
		return 0, err
	}
	if sink == nil {
		sink = NewCountingSink(side)
	}
	h := domain.SurfaceHandle(b.next.Add(1))
	b.mu.Lock()
	b.sinks[h] = sink
	b.mu.Unlock()
	if err := slot.Mount(h, sink); err != nil {
		b.mu.Lock()
		delete(b.sinks, h)
		b.mu.Unlock()
		return 0, err
	}
	return h, nil
}

func (b *Board) Unmount(side string) error {
	slot, err := b.Slot(side)
	if err != nil {
		return err
	}
	h, err := slot.Unmount()
	if err != nil {
		return err
	}
	b.mu.Lock()
	delete(b.sinks, h)
	b.mu.Unlock()
	return nil
}

// Sink returns what draws into handle. Engines call it when binding a view.
func (b *Board) Sink(h domain.SurfaceHandle) (core.Sink, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s, ok := b.sinks[h]
	return s, ok
}
