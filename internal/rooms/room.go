package rooms

import (
	"errors"
	"sync"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrAlreadyJoined = errors.New("user already in room")
	ErrNotJoined     = errors.New("user not in room")
	ErrRoomFull      = errors.New("room is full")
	ErrStreamTaken   = errors.New("stream id already published in room")
	ErrNoStream      = errors.New("stream not published")
)

// Participant binds domain.Member and the sink its notifications go to.
type Participant struct {
	Member *domain.Member
	Events core.EventHandler
}

// PublishedStream is a stream announced in the room together with its media track.
type PublishedStream struct {
	Info  domain.Stream
	Track webrtc.TrackLocal
}

// Room is a threadsafe in-memory room.
// Notifications are delivered after the lock is released, so handlers may call back into the room.
type Room struct {
	id       domain.RoomID
	maxUsers uint32

	mu      sync.RWMutex
	members map[domain.UserID]Participant
	streams map[domain.StreamID]*PublishedStream
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{
		id:      id,
		members: make(map[domain.UserID]Participant),
		streams: make(map[domain.StreamID]*PublishedStream),
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) Info() core.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return core.RoomInfo{ID: r.id, MemberCount: len(r.members), StreamCount: len(r.streams)}
}

func (r *Room) Join(p Participant, cfg domain.RoomConfig) error {
	uid := p.Member.User.ID

	r.mu.Lock()
	if _, ok := r.members[uid]; ok {
		r.mu.Unlock()
		return ErrAlreadyJoined
	}
	if cfg.MaxMemberCount > 0 && r.maxUsers == 0 {
		r.maxUsers = cfg.MaxMemberCount
	}
	if r.maxUsers > 0 && uint32(len(r.members)) >= r.maxUsers {
		r.mu.Unlock()
		return ErrRoomFull
	}
	existing := make([]domain.User, 0, len(r.members))
	var notify []func()
	for _, other := range r.members {
		existing = append(existing, *other.Member.User)
		if other.Member.Notify {
			notify = append(notify, r.userUpdate(other, core.UpdateAdd, *p.Member.User))
		}
	}
	streams := r.streamsSnapshotLocked()
	r.members[uid] = p
	r.mu.Unlock()

	if p.Member.Notify && len(existing) > 0 {
		notify = append(notify, r.userUpdate(p, core.UpdateAdd, existing...))
	}
	if len(streams) > 0 {
		notify = append(notify, r.streamUpdate(p, core.UpdateAdd, streams...))
	}
	deliver(notify)

	log.Info().Str("module", "rooms").Str("room", string(r.id)).Str("user", string(uid)).Msg("member joined")
	return nil
}

// Leave removes the member and withdraws every stream it still publishes.
func (r *Room) Leave(uid domain.UserID) error {
	r.mu.Lock()
	p, ok := r.members[uid]
	if !ok {
		r.mu.Unlock()
		return ErrNotJoined
	}
	delete(r.members, uid)
	var withdrawn []domain.Stream
	for sid, st := range r.streams {
		if st.Info.User.ID == uid {
			withdrawn = append(withdrawn, st.Info)
			delete(r.streams, sid)
		}
	}
	var notify []func()
	for _, other := range r.members {
		if len(withdrawn) > 0 {
			notify = append(notify, r.streamUpdate(other, core.UpdateDelete, withdrawn...))
		}
		if other.Member.Notify {
			notify = append(notify, r.userUpdate(other, core.UpdateDelete, *p.Member.User))
		}
	}
	r.mu.Unlock()

	deliver(notify)
	log.Info().Str("module", "rooms").Str("room", string(r.id)).Str("user", string(uid)).Msg("member left")
	return nil
}

func (r *Room) Publish(uid domain.UserID, streamID domain.StreamID, track webrtc.TrackLocal) error {
	r.mu.Lock()
	p, ok := r.members[uid]
	if !ok {
		r.mu.Unlock()
		return ErrNotJoined
	}
	if _, taken := r.streams[streamID]; taken {
		r.mu.Unlock()
		return ErrStreamTaken
	}
	info := domain.Stream{ID: streamID, User: *p.Member.User}
	r.streams[streamID] = &PublishedStream{Info: info, Track: track}
	notify := r.broadcastLocked(uid, func(other Participant) func() {
		return r.streamUpdate(other, core.UpdateAdd, info)
	})
	r.mu.Unlock()

	deliver(notify)
	log.Info().Str("module", "rooms").Str("room", string(r.id)).Str("stream", string(streamID)).Msg("stream published")
	return nil
}

func (r *Room) Unpublish(uid domain.UserID, streamID domain.StreamID) error {
	r.mu.Lock()
	st, ok := r.streams[streamID]
	if !ok || st.Info.User.ID != uid {
		r.mu.Unlock()
		return ErrNoStream
	}
	delete(r.streams, streamID)
	notify := r.broadcastLocked(uid, func(other Participant) func() {
		return r.streamUpdate(other, core.UpdateDelete, st.Info)
	})
	r.mu.Unlock()

	deliver(notify)
	log.Info().Str("module", "rooms").Str("room", string(r.id)).Str("stream", string(streamID)).Msg("stream withdrawn")
	return nil
}

func (r *Room) Stream(streamID domain.StreamID) (*PublishedStream, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.streams[streamID]
	return st, ok
}

func (r *Room) MembersSnapshot() []domain.User {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.User, 0, len(r.members))
	for _, p := range r.members {
		out = append(out, *p.Member.User)
	}
	return out
}

func (r *Room) StreamsSnapshot() []domain.Stream {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.streamsSnapshotLocked()
}

func (r *Room) streamsSnapshotLocked() []domain.Stream {
	out := make([]domain.Stream, 0, len(r.streams))
	for _, st := range r.streams {
		out = append(out, st.Info)
	}
	return out
}

func (r *Room) broadcastLocked(from domain.UserID, build func(Participant) func()) []func() {
	out := make([]func(), 0, len(r.members))
	for uid, p := range r.members {
		if uid == from {
			continue
		}
		out = append(out, build(p))
	}
	return out
}

func (r *Room) userUpdate(to Participant, t core.UpdateType, users ...domain.User) func() {
	ev := core.RoomUserUpdate{RoomID: r.id, UpdateType: t, Users: users}
	return func() { to.Events.OnRoomUserUpdate(ev) }
}

func (r *Room) streamUpdate(to Participant, t core.UpdateType, streams ...domain.Stream) func() {
	ev := core.RoomStreamUpdate{RoomID: r.id, UpdateType: t, Streams: streams}
	return func() { to.Events.OnRoomStreamUpdate(ev) }
}

func deliver(notify []func()) {
	for _, fn := range notify {
		fn()
	}
}
