package session

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/liveroom/internal/app"
	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/core/mocks"
	"github.com/dkeye/liveroom/internal/domain"
	"go.uber.org/mock/gomock"
)

// trace is the ordered list of collaborator calls seen in one test.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (t *trace) add(op string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, op)
}

func (t *trace) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.calls)
}

func (t *trace) count(op string) int {
	n := 0
	for _, c := range t.list() {
		if c == op {
			n++
		}
	}
	return n
}

func (t *trace) index(op string) int {
	return slices.Index(t.list(), op)
}

type fakeEngine struct {
	trace *trace
	// fail makes the named op return the error.
	fail map[string]error
	// block holds the named op until the channel closes or ctx is done.
	block map[string]chan struct{}

	mu       sync.Mutex
	handler  core.EventHandler
	previews []domain.MediaViewBinding
}

func newFakeEngine(tr *trace) *fakeEngine {
	return &fakeEngine{trace: tr, fail: map[string]error{}, block: map[string]chan struct{}{}}
}

func (e *fakeEngine) do(ctx context.Context, op string) error {
	e.trace.add(op)
	if ch, ok := e.block[op]; ok {
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return e.fail[op]
}

func (e *fakeEngine) SetEventHandler(h core.EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = h
}

func (e *fakeEngine) emitState(roomID domain.RoomID, st domain.RoomState) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h.OnRoomStateUpdate(core.RoomStateUpdate{RoomID: roomID, State: st})
	}
}

func (e *fakeEngine) LoginRoom(ctx context.Context, roomID domain.RoomID, _ domain.User, _ domain.RoomConfig) error {
	e.emitState(roomID, domain.RoomConnecting)
	if err := e.do(ctx, "login_room"); err != nil {
		e.emitState(roomID, domain.RoomDisconnected)
		return err
	}
	e.emitState(roomID, domain.RoomConnected)
	return nil
}

func (e *fakeEngine) LogoutRoom(ctx context.Context, _ domain.RoomID) error {
	return e.do(ctx, "logout_room")
}

func (e *fakeEngine) StartPreview(ctx context.Context, view domain.MediaViewBinding) error {
	e.mu.Lock()
	e.previews = append(e.previews, view)
	e.mu.Unlock()
	return e.do(ctx, "start_preview")
}

func (e *fakeEngine) StopPreview(ctx context.Context) error {
	return e.do(ctx, "stop_preview")
}

func (e *fakeEngine) StartPublishingStream(ctx context.Context, _ domain.StreamID) error {
	return e.do(ctx, "start_publishing")
}

func (e *fakeEngine) StopPublishingStream(ctx context.Context, _ domain.StreamID) error {
	return e.do(ctx, "stop_publishing")
}

func (e *fakeEngine) StartPlayingStream(ctx context.Context, _ domain.StreamID, _ domain.MediaViewBinding) error {
	return e.do(ctx, "start_playing")
}

func (e *fakeEngine) StopPlayingStream(ctx context.Context, _ domain.StreamID) error {
	return e.do(ctx, "stop_playing")
}

func (e *fakeEngine) UseFrontCamera(ctx context.Context, front bool) error {
	return e.do(ctx, fmt.Sprintf("use_front_camera:%t", front))
}

func (e *fakeEngine) previewBindings() []domain.MediaViewBinding {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.previews)
}

// readySurface is mounted after an optional delay.
type readySurface struct {
	handle domain.SurfaceHandle
	delay  time.Duration
}

func (s readySurface) Await(ctx context.Context) (domain.SurfaceHandle, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return s.handle, nil
}

// missingSurface never mounts.
type missingSurface struct{}

func (missingSurface) Await(ctx context.Context) (domain.SurfaceHandle, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

type harness struct {
	trace   *trace
	engine  *fakeEngine
	perms   *mocks.MockPermissionRequester
	factory *mocks.MockEngineFactory
	lease   *app.EngineLease
	opts    Options
	deps    Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mc := gomock.NewController(t)
	tr := &trace{}
	h := &harness{
		trace:   tr,
		engine:  newFakeEngine(tr),
		perms:   mocks.NewMockPermissionRequester(mc),
		factory: mocks.NewMockEngineFactory(mc),
		lease:   app.NewEngineLease(),
		opts: Options{
			Identity: domain.SessionIdentity{
				RoomID:   "room1",
				User:     domain.User{ID: "user_1", Username: "user_1"},
				StreamID: "stream1",
			},
			PlayStreamID:   "stream2",
			Profile:        domain.Profile{AppID: 1, AppSign: "sign", Scenario: domain.ScenarioGeneral},
			RoomConfig:     domain.RoomConfig{UserStatusNotify: true},
			SurfaceTimeout: time.Second,
		},
	}
	h.deps = Deps{
		Permissions: h.perms,
		Factory:     h.factory,
		Lease:       h.lease,
		Local:       readySurface{handle: 11},
		Remote:      readySurface{handle: 22},
	}
	return h
}

func (h *harness) grant() {
	h.perms.EXPECT().Request(gomock.Any()).
		Return(domain.PermissionState{Camera: true, Microphone: true}, nil)
}

func (h *harness) expectCreate() {
	h.factory.EXPECT().Create(gomock.Any(), h.opts.Profile).
		DoAndReturn(func(context.Context, domain.Profile) (core.Engine, error) {
			h.trace.add("create_engine")
			return h.engine, nil
		}).Times(1)
}

func (h *harness) expectDestroy() {
	h.factory.EXPECT().Destroy(gomock.Any()).
		DoAndReturn(func(context.Context) error {
			h.trace.add("destroy_engine")
			return nil
		}).Times(1)
}

func (h *harness) holder() string {
	owner, _ := h.lease.Holder()
	return owner
}

func (h *harness) controller() *Controller {
	return New(h.opts, h.deps)
}

// recordingObserver counts room state notifications.
type recordingObserver struct {
	mu     sync.Mutex
	states []domain.RoomState
}

func (o *recordingObserver) OnRoomStateUpdate(u core.RoomStateUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, u.State)
}

func (o *recordingObserver) OnRoomUserUpdate(core.RoomUserUpdate)     {}
func (o *recordingObserver) OnRoomStreamUpdate(core.RoomStreamUpdate) {}

func (o *recordingObserver) seen() []domain.RoomState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.states)
}

type panickingObserver struct{}

func (panickingObserver) OnRoomStateUpdate(core.RoomStateUpdate)   { panic("boom") }
func (panickingObserver) OnRoomUserUpdate(core.RoomUserUpdate)     { panic("boom") }
func (panickingObserver) OnRoomStreamUpdate(core.RoomStreamUpdate) { panic("boom") }
