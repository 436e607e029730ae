package signal

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/liveroom/internal/app/session"
	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rawEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startFeed(t *testing.T, opts Options) (*Feed, *websocket.Conn) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	feed := NewFeed(opts, func() session.Status {
		return session.Status{State: session.StateIdle, RoomID: "room1"}
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { feed.Handle(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	require.Eventually(t, func() bool { return feed.Count() == 1 }, time.Second, 5*time.Millisecond)
	return feed, ws
}

func readUntil(t *testing.T, ws *websocket.Conn, typ string) rawEvent {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var ev rawEvent
		require.NoError(t, ws.ReadJSON(&ev))
		if ev.Type == typ {
			return ev
		}
	}
}

func TestFeed_InitialStatus(t *testing.T) {
	_, ws := startFeed(t, Options{})

	ev := readUntil(t, ws, "status")
	var st session.Status
	require.NoError(t, json.Unmarshal(ev.Data, &st))
	assert.Equal(t, session.StateIdle, st.State)
	assert.Equal(t, domain.RoomID("room1"), st.RoomID)
}

func TestFeed_BroadcastsRoomEvents(t *testing.T) {
	feed, ws := startFeed(t, Options{})

	feed.OnRoomStreamUpdate(core.RoomStreamUpdate{
		RoomID:     "room1",
		UpdateType: core.UpdateAdd,
		Streams:    []domain.Stream{{ID: "s1"}},
	})
	ev := readUntil(t, ws, "room_streams")
	var u core.RoomStreamUpdate
	require.NoError(t, json.Unmarshal(ev.Data, &u))
	require.Len(t, u.Streams, 1)
	assert.Equal(t, domain.StreamID("s1"), u.Streams[0].ID)
}

func TestFeed_FollowForwardsStatus(t *testing.T) {
	feed, ws := startFeed(t, Options{})
	readUntil(t, ws, "status")

	updates := make(chan session.Status, 1)
	updates <- session.Status{State: session.StatePublishingPlaying}
	close(updates)
	feed.Follow(context.Background(), updates)

	ev := readUntil(t, ws, "status")
	var st session.Status
	require.NoError(t, json.Unmarshal(ev.Data, &st))
	assert.Equal(t, session.StatePublishingPlaying, st.State)
}

func TestFeed_PingPong(t *testing.T) {
	_, ws := startFeed(t, Options{})
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "ping"}))
	readUntil(t, ws, "pong")
}

func TestFeed_RateLimited(t *testing.T) {
	_, ws := startFeed(t, Options{Burst: 1, Window: time.Minute})
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "ping"}))
	readUntil(t, ws, "pong")
	require.NoError(t, ws.WriteJSON(map[string]string{"type": "ping"}))
	readUntil(t, ws, "error")
}

func TestFeed_DropsClosedClient(t *testing.T) {
	feed, ws := startFeed(t, Options{})
	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool { return feed.Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConn_TrySend(t *testing.T) {
	c := &wsConn{send: make(chan core.Frame, 1)}
	require.NoError(t, c.TrySend([]byte("a")))
	assert.ErrorIs(t, c.TrySend([]byte("b")), ErrBackpressure)

	c.Close()
	assert.ErrorIs(t, c.TrySend([]byte("c")), ErrClosed)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	assert.True(t, rl.Allow("v"))
	assert.True(t, rl.Allow("v"))
	assert.False(t, rl.Allow("v"))
	assert.True(t, rl.Allow("other"))

	rl.Forget("v")
	assert.True(t, rl.Allow("v"))
}

func TestFeed_KicksSlowClient(t *testing.T) {
	feed := NewFeed(Options{Policy: KickAfter{Limit: 2}}, func() session.Status { return session.Status{} })
	slow := &wsConn{id: "slow", send: make(chan core.Frame, 1)}
	feed.conns[slow.id] = slow

	feed.Broadcast(Event{Type: "a"})
	feed.Broadcast(Event{Type: "b"})
	assert.Equal(t, 1, feed.Count())
	feed.Broadcast(Event{Type: "c"})
	assert.Equal(t, 0, feed.Count())
	assert.ErrorIs(t, slow.TrySend([]byte("x")), ErrClosed)
}

func TestKickAfter(t *testing.T) {
	assert.Equal(t, DropEvent, KickAfter{Limit: 3}.OnBackpressure("v", 2))
	assert.Equal(t, KickClient, KickAfter{Limit: 3}.OnBackpressure("v", 3))
	assert.Equal(t, DropEvent, KickAfter{}.OnBackpressure("v", 1000))
}
