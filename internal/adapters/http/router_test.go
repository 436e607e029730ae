package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dkeye/liveroom/internal/adapters/surface"
	"github.com/dkeye/liveroom/internal/app/session"
	"github.com/dkeye/liveroom/internal/config"
	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/dkeye/liveroom/internal/metrics"
	"github.com/dkeye/liveroom/internal/rooms"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct {
	state     session.State
	toggleErr error
	toggles   int
	teardowns int
}

func (s *fakeSession) Status() session.Status { return session.Status{State: s.state} }

func (s *fakeSession) ToggleCamera(context.Context) error {
	s.toggles++
	return s.toggleErr
}

func (s *fakeSession) Teardown(context.Context) {
	s.teardowns++
	s.state = session.StateTornDown
}

type nopEvents struct{}

func (nopEvents) OnRoomStateUpdate(core.RoomStateUpdate)   {}
func (nopEvents) OnRoomUserUpdate(core.RoomUserUpdate)     {}
func (nopEvents) OnRoomStreamUpdate(core.RoomStreamUpdate) {}

func setup(t *testing.T, sess *fakeSession) (*gin.Engine, Deps) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics.New(reg).Transition(string(session.StateIdle))
	d := Deps{
		Session:  sess,
		Board:    surface.NewBoard(),
		Rooms:    rooms.NewHub(),
		Gatherer: reg,
	}
	cfg := &config.Config{Mode: "test", Secret: "test-secret"}
	return SetupRouter(context.Background(), cfg, d), d
}

func do(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestStatus(t *testing.T) {
	r, _ := setup(t, &fakeSession{state: session.StateRoomJoined})

	w := do(r, http.MethodGet, "/api/session")
	require.Equal(t, http.StatusOK, w.Code)
	var st session.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, session.StateRoomJoined, st.State)
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestToggleCamera(t *testing.T) {
	sess := &fakeSession{state: session.StateIdle, toggleErr: session.ErrEngineNotReady}
	r, _ := setup(t, sess)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/session/camera").Code)

	sess.toggleErr = errors.New("camera gone")
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodPost, "/api/session/camera").Code)

	sess.toggleErr = nil
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/api/session/camera").Code)
	assert.Equal(t, 3, sess.toggles)
}

func TestDismiss(t *testing.T) {
	sess := &fakeSession{state: session.StatePublishingPlaying}
	r, _ := setup(t, sess)

	w := do(r, http.MethodDelete, "/api/session")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, sess.teardowns)
	assert.Contains(t, w.Body.String(), string(session.StateTornDown))
}

func TestSurfaces(t *testing.T) {
	r, d := setup(t, &fakeSession{})

	w := do(r, http.MethodPost, "/api/surfaces/local")
	require.Equal(t, http.StatusCreated, w.Code)
	var resp MountResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotZero(t, resp.Handle)
	h, ok := d.Board.Local().Handle()
	require.True(t, ok)
	assert.Equal(t, resp.Handle, h)

	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/api/surfaces/local").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/api/surfaces/side").Code)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, "/api/surfaces/local").Code)
	assert.Equal(t, http.StatusConflict, do(r, http.MethodDelete, "/api/surfaces/local").Code)
}

func TestRooms(t *testing.T) {
	r, d := setup(t, &fakeSession{})
	room := d.Rooms.GetOrCreate("room1")
	user := &domain.User{ID: "u1", Username: "u1"}
	require.NoError(t, room.Join(rooms.Participant{Member: domain.NewMember(user, domain.RoomConfig{}), Events: nopEvents{}}, domain.RoomConfig{}))

	w := do(r, http.MethodGet, "/api/rooms")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Rooms, 1)
	assert.Equal(t, 1, list.Rooms[0].MemberCount)

	w = do(r, http.MethodGet, "/api/rooms/room1")
	require.Equal(t, http.StatusOK, w.Code)
	var detail RoomResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	require.Len(t, detail.Members, 1)
	assert.Equal(t, domain.UserID("u1"), detail.Members[0].ID)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/rooms/none").Code)
}

func TestViewerKeepsToken(t *testing.T) {
	r, _ := setup(t, &fakeSession{})

	first := do(r, http.MethodGet, "/api/viewer")
	require.Equal(t, http.StatusOK, first.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/viewer", nil)
	for _, c := range first.Result().Cookies() {
		req.AddCookie(c)
	}
	second := httptest.NewRecorder()
	r.ServeHTTP(second, req)

	var a, b struct {
		Token  string `json:"token"`
		Visits int    `json:"visits"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
	assert.Equal(t, a.Token, b.Token)
	assert.Equal(t, 1, a.Visits)
	assert.Equal(t, 2, b.Visits)
}

func TestMetricsEndpoint(t *testing.T) {
	r, _ := setup(t, &fakeSession{})

	w := do(r, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "liveroom_session_transitions_total")
}
