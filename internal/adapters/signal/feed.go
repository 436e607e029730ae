// Package signal pushes session status and room notifications to UI clients over WebSocket.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/liveroom/internal/app/session"
	"github.com/dkeye/liveroom/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Event is the envelope of every message the feed writes.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	// Inbound messages allowed per viewer per Window.
	Burst  int
	Window time.Duration
	// Policy handles clients that cannot keep up. Nil kicks after 64 missed events.
	Policy Policy
}

// Feed fans events out to every connected client. It is a core.EventHandler,
// so it can be registered as a session observer directly.
type Feed struct {
	opts    Options
	status  func() session.Status
	limiter *RateLimiter

	mu    sync.RWMutex
	conns map[string]*wsConn
}

func NewFeed(opts Options, status func() session.Status) *Feed {
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = 32768
	}
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	if opts.Burst <= 0 {
		opts.Burst = 10
	}
	if opts.Window <= 0 {
		opts.Window = time.Second
	}
	if opts.Policy == nil {
		opts.Policy = KickAfter{Limit: 64}
	}
	return &Feed{
		opts:    opts,
		status:  status,
		limiter: NewRateLimiter(opts.Burst, opts.Window),
		conns:   make(map[string]*wsConn),
	}
}

func (f *Feed) OnRoomStateUpdate(u core.RoomStateUpdate) {
	f.Broadcast(Event{Type: "room_state", Data: u})
}

func (f *Feed) OnRoomUserUpdate(u core.RoomUserUpdate) {
	f.Broadcast(Event{Type: "room_users", Data: u})
}

func (f *Feed) OnRoomStreamUpdate(u core.RoomStreamUpdate) {
	f.Broadcast(Event{Type: "room_streams", Data: u})
}

// Follow broadcasts every status snapshot until the channel closes or ctx ends.
func (f *Feed) Follow(ctx context.Context, updates <-chan session.Status) {
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			f.Broadcast(Event{Type: "status", Data: st})
		}
	}
}

func (f *Feed) Broadcast(ev Event) {
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("type", ev.Type).Msg("broadcast marshal")
		return
	}
	var slow []*wsConn
	f.mu.RLock()
	for id, c := range f.conns {
		err := c.TrySend(b)
		if err == nil {
			c.missed.Store(0)
			continue
		}
		if !errors.Is(err, ErrBackpressure) {
			continue
		}
		missed := c.missed.Add(1)
		log.Warn().Str("module", "signal").Str("conn", id).Str("type", ev.Type).Int64("missed", missed).Msg("drop event")
		if f.opts.Policy.OnBackpressure(c.viewer, missed) == KickClient {
			slow = append(slow, c)
		}
	}
	f.mu.RUnlock()

	for _, c := range slow {
		log.Warn().Str("module", "signal").Str("conn", c.id).Str("viewer", c.viewer).Msg("kicking slow client")
		f.drop(c)
	}
}

func (f *Feed) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.conns)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the request and serves the connection until either side goes away.
func (f *Feed) Handle(ctx context.Context, c *gin.Context) {
	viewer := c.GetString("client_token")
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	conn := &wsConn{
		id:     uuid.NewString(),
		viewer: viewer,
		conn:   ws,
		send:   make(chan core.Frame, 32),
		cancel: cancel,
	}
	f.mu.Lock()
	f.conns[conn.id] = conn
	f.mu.Unlock()
	log.Info().Str("module", "signal").Str("viewer", viewer).Str("conn", conn.id).Msg("feed connected")

	f.sendJSON(conn, Event{Type: "status", Data: f.status()})

	go f.writePump(ctx, conn)
	go f.readPump(ctx, conn)
}

func (f *Feed) drop(c *wsConn) {
	f.mu.Lock()
	delete(f.conns, c.id)
	f.mu.Unlock()
	f.limiter.Forget(c.viewer)
	c.Close()
}

func (f *Feed) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(f.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", c.id).Msg("writePump ping")
				f.drop(c)
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				f.drop(c)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				f.drop(c)
				return
			}
		}
	}
}

func (f *Feed) readPump(ctx context.Context, c *wsConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", c.id).Msg("readPump closing")
		f.drop(c)
	}()

	c.conn.SetReadLimit(f.opts.ReadLimit)
	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			log.Debug().Err(err).Str("module", "signal").Str("conn", c.id).Msg("readPump read error")
			return
		}
		f.handleMessage(c, data)
	}
}

func (f *Feed) handleMessage(c *wsConn, data []byte) {
	if !f.limiter.Allow(c.viewer) {
		f.sendJSON(c, Event{Type: "error", Data: "rate limited"})
		return
	}
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		return
	}
	switch env.Type {
	case "ping":
		f.sendJSON(c, Event{Type: "pong"})
	case "status":
		f.sendJSON(c, Event{Type: "status", Data: f.status()})
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown message")
	}
}

func (f *Feed) sendJSON(c *wsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}
