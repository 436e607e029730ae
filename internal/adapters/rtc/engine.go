package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/dkeye/liveroom/internal/rooms"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Room state error codes carried in RoomStateUpdate.ErrorCode.
const (
	codeOK         = 0
	codeJoinFailed = 1002001
)

type Engine struct {
	api     *webrtc.API
	ice     webrtc.Configuration
	hub     *rooms.Hub
	sinks   SinkResolver
	profile domain.Profile
	logger  zerolog.Logger
	capture *capture

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	handler    core.EventHandler
	destroyed  bool
	room       *rooms.Room
	user       domain.User
	publishing domain.StreamID
	plays      map[domain.StreamID]*playback
}

func newEngine(api *webrtc.API, cfg Config, hub *rooms.Hub, sinks SinkResolver, profile domain.Profile) *Engine {
	logger := log.With().Str("module", "rtc.engine").Logger()
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		api:     api,
		ice:     iceConfig(cfg.ICEServers),
		hub:     hub,
		sinks:   sinks,
		profile: profile,
		logger:  logger,
		capture: newCapture(cfg.FPS, logger),
		ctx:     ctx,
		cancel:  cancel,
		plays:   make(map[domain.StreamID]*playback),
	}
}

func (e *Engine) SetEventHandler(h core.EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

func (e *Engine) LoginRoom(ctx context.Context, roomID domain.RoomID, user domain.User, cfg domain.RoomConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := roomID.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return ErrDestroyed
	}
	if e.room != nil {
		e.mu.Unlock()
		return ErrAlreadyLoggedIn
	}
	e.user = user
	e.mu.Unlock()

	e.emitState(roomID, domain.RoomConnecting, codeOK)
	room := e.hub.GetOrCreate(roomID)
	p := rooms.Participant{Member: domain.NewMember(&user, cfg), Events: roomEvents{e}}
	if err := room.Join(p, cfg); err != nil {
		e.hub.StopIfEmpty(roomID)
		e.emitState(roomID, domain.RoomDisconnected, codeJoinFailed)
		return fmt.Errorf("join %s: %w", roomID, err)
	}

	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		_ = room.Leave(user.ID)
		e.hub.StopIfEmpty(roomID)
		return ErrDestroyed
	}
	e.room = room
	e.mu.Unlock()

	e.emitState(roomID, domain.RoomConnected, codeOK)
	e.logger.Info().Str("room", string(roomID)).Str("user", string(user.ID)).Msg("logged in")
	return nil
}

func (e *Engine) LogoutRoom(ctx context.Context, roomID domain.RoomID) error {
	e.mu.Lock()
	room := e.room
	if room == nil || room.ID() != roomID {
		e.mu.Unlock()
		return ErrNotLoggedIn
	}
	plays := e.takePlaysLocked()
	uid := e.user.ID
	e.room, e.publishing = nil, ""
	e.mu.Unlock()

	for _, p := range plays {
		p.stop()
	}
	e.capture.setTrack(nil)
	if err := room.Leave(uid); err != nil {
		return fmt.Errorf("leave %s: %w", roomID, err)
	}
	e.hub.StopIfEmpty(roomID)
	e.emitState(roomID, domain.RoomDisconnected, codeOK)
	e.logger.Info().Str("room", string(roomID)).Msg("logged out")
	return nil
}

func (e *Engine) StartPreview(ctx context.Context, view domain.MediaViewBinding) error {
	if err := view.Validate(); err != nil {
		return err
	}
	sink, ok := e.sinks.Sink(view.Handle)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSurface, view.Handle)
	}
	if e.isDestroyed() {
		return ErrDestroyed
	}
	e.capture.setSink(sink)
	e.logger.Info().Uint64("handle", uint64(view.Handle)).Int("view_mode", int(view.ViewMode)).Msg("preview started")
	return nil
}

func (e *Engine) StopPreview(ctx context.Context) error {
	e.capture.setSink(nil)
	e.logger.Info().Msg("preview stopped")
	return nil
}

func (e *Engine) StartPublishingStream(ctx context.Context, streamID domain.StreamID) error {
	if err := streamID.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	room, uid := e.room, e.user.ID
	if room == nil {
		e.mu.Unlock()
		return ErrNotLoggedIn
	}
	if e.publishing != "" {
		same := e.publishing == streamID
		e.mu.Unlock()
		if same {
			return nil
		}
		return ErrAlreadyPublished
	}
	e.mu.Unlock()

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", string(streamID))
	if err != nil {
		return fmt.Errorf("new track: %w", err)
	}
	if err := room.Publish(uid, streamID, track); err != nil {
		return fmt.Errorf("publish %s: %w", streamID, err)
	}

	e.mu.Lock()
	e.publishing = streamID
	own := e.plays[streamID]
	e.mu.Unlock()
	e.capture.setTrack(track)
	e.logger.Info().Str("stream", string(streamID)).Msg("publishing")

	// The room does not announce a stream to its own publisher.
	if own != nil {
		if st, ok := room.Stream(streamID); ok {
			go e.connect(own, st)
		}
	}
	return nil
}

func (e *Engine) StopPublishingStream(ctx context.Context, streamID domain.StreamID) error {
	e.mu.Lock()
	room, uid := e.room, e.user.ID
	if room == nil || e.publishing != streamID {
		e.mu.Unlock()
		return ErrNotPublishing
	}
	e.publishing = ""
	own := e.plays[streamID]
	e.mu.Unlock()

	e.capture.setTrack(nil)
	if own != nil {
		own.disconnect()
	}
	if err := room.Unpublish(uid, streamID); err != nil {
		return fmt.Errorf("unpublish %s: %w", streamID, err)
	}
	e.logger.Info().Str("stream", string(streamID)).Msg("publishing stopped")
	return nil
}

// StartPlayingStream binds streamID to the surface. When the stream is not
// published yet, playback starts as soon as the room announces it.
func (e *Engine) StartPlayingStream(ctx context.Context, streamID domain.StreamID, view domain.MediaViewBinding) error {
	if err := streamID.Validate(); err != nil {
		return err
	}
	if err := view.Validate(); err != nil {
		return err
	}
	sink, ok := e.sinks.Sink(view.Handle)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownSurface, view.Handle)
	}

	e.mu.Lock()
	room := e.room
	if room == nil {
		e.mu.Unlock()
		return ErrNotLoggedIn
	}
	if _, ok := e.plays[streamID]; ok {
		e.mu.Unlock()
		return ErrAlreadyPlaying
	}
	p := newPlayback(streamID, sink, e.logger)
	e.plays[streamID] = p
	e.mu.Unlock()

	if st, ok := room.Stream(streamID); ok {
		go e.connect(p, st)
	} else {
		e.logger.Info().Str("stream", string(streamID)).Msg("waiting for stream")
	}
	return nil
}

func (e *Engine) StopPlayingStream(ctx context.Context, streamID domain.StreamID) error {
	e.mu.Lock()
	p, ok := e.plays[streamID]
	delete(e.plays, streamID)
	e.mu.Unlock()
	if !ok {
		return ErrNotPlaying
	}
	p.stop()
	e.logger.Info().Str("stream", string(streamID)).Msg("playing stopped")
	return nil
}

func (e *Engine) UseFrontCamera(ctx context.Context, front bool) error {
	if e.isDestroyed() {
		return ErrDestroyed
	}
	e.capture.setFront(front)
	e.logger.Info().Bool("front", front).Msg("camera switched")
	return nil
}

// Playing reports whether streamID is bound and connected.
func (e *Engine) Playing(streamID domain.StreamID) (bound, connected bool) {
	e.mu.Lock()
	p, ok := e.plays[streamID]
	e.mu.Unlock()
	if !ok {
		return false, false
	}
	return true, p.connected()
}

func (e *Engine) connect(p *playback, st *rooms.PublishedStream) {
	if err := p.connect(e.ctx, e.api, e.ice, st.Track); err != nil {
		e.logger.Error().Err(err).Str("stream", string(st.Info.ID)).Msg("connect playback")
	}
}

func (e *Engine) onStreams(u core.RoomStreamUpdate) {
	e.mu.Lock()
	room := e.room
	var touched []*playback
	for _, st := range u.Streams {
		if p, ok := e.plays[st.ID]; ok {
			touched = append(touched, p)
		}
	}
	e.mu.Unlock()

	for _, p := range touched {
		if u.UpdateType == core.UpdateDelete {
			p.disconnect()
			continue
		}
		if room == nil {
			continue
		}
		if st, ok := room.Stream(p.streamID); ok {
			go e.connect(p, st)
		}
	}
}

func (e *Engine) destroy(ctx context.Context) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	room, uid := e.room, e.user.ID
	plays := e.takePlaysLocked()
	e.room, e.publishing = nil, ""
	e.mu.Unlock()

	e.cancel()
	for _, p := range plays {
		p.stop()
	}
	e.capture.stop()
	if room != nil {
		_ = room.Leave(uid)
		e.hub.StopIfEmpty(room.ID())
		e.emitState(room.ID(), domain.RoomDisconnected, codeOK)
	}
}

func (e *Engine) takePlaysLocked() []*playback {
	out := make([]*playback, 0, len(e.plays))
	for id, p := range e.plays {
		out = append(out, p)
		delete(e.plays, id)
	}
	return out
}

func (e *Engine) isDestroyed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.destroyed
}

func (e *Engine) events() core.EventHandler {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handler
}

func (e *Engine) emitState(roomID domain.RoomID, st domain.RoomState, code int) {
	if h := e.events(); h != nil {
		h.OnRoomStateUpdate(core.RoomStateUpdate{RoomID: roomID, State: st, ErrorCode: code})
	}
}

// roomEvents receives room notifications on behalf of the engine.
type roomEvents struct{ e *Engine }

func (r roomEvents) OnRoomStateUpdate(u core.RoomStateUpdate) {
	if h := r.e.events(); h != nil {
		h.OnRoomStateUpdate(u)
	}
}

func (r roomEvents) OnRoomUserUpdate(u core.RoomUserUpdate) {
	if h := r.e.events(); h != nil {
		h.OnRoomUserUpdate(u)
	}
}

func (r roomEvents) OnRoomStreamUpdate(u core.RoomStreamUpdate) {
	r.e.onStreams(u)
	if h := r.e.events(); h != nil {
		h.OnRoomStreamUpdate(u)
	}
}
