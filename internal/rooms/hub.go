package rooms

import (
	"sort"
	"sync"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Hub owns every room of the in-process engine.
type Hub struct {
	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[domain.RoomID]*Room)}
}

func (h *Hub) GetOrCreate(id domain.RoomID) *Room {
	h.mu.RLock()
	room, ok := h.rooms[id]
	h.mu.RUnlock()
	if ok {
		return room
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok = h.rooms[id]; ok {
		return room
	}
	room = NewRoom(id)
	h.rooms[id] = room
	log.Info().Str("module", "rooms").Str("room", string(id)).Msg("room created")
	return room
}

func (h *Hub) Get(id domain.RoomID) (*Room, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[id]
	return room, ok
}

func (h *Hub) List() []core.RoomInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]core.RoomInfo, 0, len(h.rooms))
	for _, r := range h.rooms {
		out = append(out, r.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// StopIfEmpty drops the room once its last member left.
func (h *Hub) StopIfEmpty(id domain.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[id]; ok && room.MemberCount() == 0 {
		delete(h.rooms, id)
		log.Info().Str("module", "rooms").Str("room", string(id)).Msg("room stopped")
	}
}
