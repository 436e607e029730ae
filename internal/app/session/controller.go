// Package session drives one audio/video session from permissions to teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/liveroom/internal/app"
	"github.com/dkeye/liveroom/internal/core"
	"github.com/dkeye/liveroom/internal/domain"
	"github.com/dkeye/liveroom/internal/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

// Options is the fixed per-session configuration.
type Options struct {
	Identity domain.SessionIdentity
	// PlayStreamID is the remote stream to render. Empty means Identity.StreamID.
	PlayStreamID    domain.StreamID
	Profile         domain.Profile
	RoomConfig      domain.RoomConfig
	ViewMode        domain.ViewMode
	BackgroundColor uint32
	Facing          domain.CameraFacing
	// SurfaceTimeout bounds each wait for a surface mount. Zero waits for the mount signal or ctx.
	SurfaceTimeout time.Duration
}

// Deps are the collaborators the controller drives.
type Deps struct {
	Permissions core.PermissionRequester
	Factory     core.EngineFactory
	Lease       *app.EngineLease
	Local       core.Surface
	Remote      core.Surface
	Observers   []core.EventHandler
	Metrics     *metrics.Metrics
}

// Status is a snapshot for the UI layer.
type Status struct {
	State          State                   `json:"state"`
	Reason         string                  `json:"reason,omitempty"`
	Local          PathPhase               `json:"local"`
	LocalError     string                  `json:"local_error,omitempty"`
	Remote         PathPhase               `json:"remote"`
	RemoteError    string                  `json:"remote_error,omitempty"`
	Facing         string                  `json:"facing"`
	RoomID         domain.RoomID           `json:"room_id"`
	UserID         domain.UserID           `json:"user_id"`
	StreamID       domain.StreamID         `json:"stream_id"`
	PlayStreamID   domain.StreamID         `json:"play_stream_id"`
	Permissions    *domain.PermissionState `json:"permissions,omitempty"`
	TeardownErrors []string                `json:"teardown_errors,omitempty"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

// Controller owns the engine handle for one session.
type Controller struct {
	id     string
	opts   Options
	deps   Deps
	logger zerolog.Logger
	events *fanout

	// opMu serializes camera toggles with the release phase of teardown.
	opMu sync.Mutex

	mu           sync.Mutex
	state        State
	reason       error
	cancel       context.CancelFunc
	done         chan struct{}
	torn         bool
	leased       bool
	engine       core.Engine
	loggedIn     bool
	previewing   bool
	publishing   bool
	playing      bool
	localView    domain.MediaViewBinding
	facing       domain.CameraFacing
	local        PathPhase
	localErr     error
	remote       PathPhase
	remoteErr    error
	perms        *domain.PermissionState
	teardownErrs []error
	updatedAt    time.Time
	watchers     map[int]chan Status
	nextWatcher  int
}

func New(opts Options, deps Deps) *Controller {
	if opts.PlayStreamID == "" {
		opts.PlayStreamID = opts.Identity.StreamID
	}
	id := uuid.NewString()
	logger := log.With().
		Str("module", "session").
		Str("controller", id).
		Str("room", string(opts.Identity.RoomID)).
		Str("user", string(opts.Identity.User.ID)).
		Logger()

	observers := append([]core.EventHandler{NewLogObserver()}, deps.Observers...)
	return &Controller{
		id:        id,
		opts:      opts,
		deps:      deps,
		logger:    logger,
		events:    &fanout{observers: observers, metrics: deps.Metrics, logger: logger},
		state:     StateIdle,
		facing:    opts.Facing,
		local:     PhasePending,
		remote:    PhasePending,
		updatedAt: time.Now(),
		watchers:  make(map[int]chan Status),
	}
}

// ID identifies the controller as the engine lease owner.
func (c *Controller) ID() string { return c.id }

// Start runs the startup sequence. Steps up to room join abort on the first failure.
// The local and remote media paths run concurrently and fail independently;
// their errors are joined in the returned error.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return ErrTornDown
	}
	if c.state != StateIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	done := c.done
	c.setStateLocked(StateAcquiringPermissions)
	c.mu.Unlock()

	defer close(done)
	defer cancel()

	err := c.startup(runCtx)
	if c.abandoned() {
		return ErrTornDown
	}
	return err
}

func (c *Controller) startup(ctx context.Context) error {
	perms, err := c.deps.Permissions.Request(ctx)
	if c.abandoned() {
		return ErrTornDown
	}
	c.mu.Lock()
	c.perms = &perms
	c.mu.Unlock()
	if err != nil {
		return c.fail(fmt.Errorf("%w: %v", ErrPermissionDenied, err))
	}
	if !perms.Granted() {
		return c.fail(fmt.Errorf("%w: %s", ErrPermissionDenied, perms))
	}
	c.logger.Info().Msg("permissions granted")

	engine, err := c.createEngine(ctx)
	if err != nil {
		return err
	}

	engine.SetEventHandler(c.events)

	if err := c.login(ctx, engine); err != nil {
		return err
	}

	var (
		wg                  conc.WaitGroup
		localErr, remoteErr error
	)
	wg.Go(func() { localErr = c.runLocal(ctx, engine) })
	wg.Go(func() { remoteErr = c.runRemote(ctx, engine) })
	wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn {
		return ErrTornDown
	}
	if localErr == nil && remoteErr == nil {
		c.setStateLocked(StatePublishingPlaying)
		c.logger.Info().Msg("session live")
		return nil
	}
	err = errors.Join(localErr, remoteErr)
	c.failLocked(err)
	return err
}

func (c *Controller) createEngine(ctx context.Context) (core.Engine, error) {
	if err := c.deps.Lease.Acquire(c.id); err != nil {
		return nil, c.fail(fmt.Errorf("%w: %v", ErrEngineBusy, err))
	}
	c.mu.Lock()
	c.leased = true
	c.mu.Unlock()

	engine, err := c.deps.Factory.Create(ctx, c.opts.Profile)
	c.deps.Metrics.EngineCall("create_engine", err)

	c.mu.Lock()
	if err != nil {
		c.leased = false
		c.mu.Unlock()
		c.deps.Lease.Release(c.id)
		if c.abandoned() {
			return nil, ErrTornDown
		}
		return nil, c.fail(fmt.Errorf("%w: %v", ErrEngineCreateFailed, err))
	}
	c.engine = engine
	torn := c.torn
	if !torn {
		c.setStateLocked(StateEngineReady)
	}
	c.mu.Unlock()

	if torn {
		return nil, ErrTornDown
	}
	c.logger.Info().Uint32("app_id", c.opts.Profile.AppID).Str("scenario", c.opts.Profile.Scenario.String()).Msg("engine created")
	return engine, nil
}

func (c *Controller) login(ctx context.Context, engine core.Engine) error {
	id := c.opts.Identity
	err := c.call("login_room", func() error {
		return engine.LoginRoom(ctx, id.RoomID, id.User, c.opts.RoomConfig)
	})

	c.mu.Lock()
	if err == nil {
		c.loggedIn = true
	}
	torn := c.torn
	if !torn && err == nil {
		c.setStateLocked(StateRoomJoined)
	}
	c.mu.Unlock()

	if torn {
		return ErrTornDown
	}
	if err != nil {
		return c.fail(fmt.Errorf("%w: %v", ErrRoomJoinFailed, err))
	}
	c.logger.Info().Msg("room joined")
	return nil
}

// runLocal binds the local surface, starts preview and then publishes.
func (c *Controller) runLocal(ctx context.Context, engine core.Engine) error {
	handle, err := c.awaitSurface(ctx, "local", c.deps.Local)
	if err != nil {
		return c.failPath(true, err)
	}
	view := c.binding(handle)

	err = c.call("start_preview", func() error { return engine.StartPreview(ctx, view) })
	c.mu.Lock()
	if err == nil {
		c.previewing = true
		c.localView = view
		c.local = PhasePreviewing
		if !c.torn && c.state == StateRoomJoined {
			c.setStateLocked(StatePreviewing)
		}
	}
	torn := c.torn
	c.mu.Unlock()
	if torn {
		return ErrTornDown
	}
	if err != nil {
		return c.failPath(true, fmt.Errorf("start preview: %w", err))
	}

	if err := c.publish(ctx, engine); err != nil {
		return c.failPath(true, err)
	}
	return nil
}

// publish refuses to run before preview has started.
func (c *Controller) publish(ctx context.Context, engine core.Engine) error {
	c.mu.Lock()
	previewing := c.previewing
	c.mu.Unlock()
	if !previewing {
		return ErrPreviewNotStarted
	}

	streamID := c.opts.Identity.StreamID
	err := c.call("start_publishing", func() error { return engine.StartPublishingStream(ctx, streamID) })
	c.mu.Lock()
	if err == nil {
		c.publishing = true
		c.local = PhasePublishing
	}
	torn := c.torn
	c.mu.Unlock()
	if torn {
		return ErrTornDown
	}
	if err != nil {
		return fmt.Errorf("start publishing %s: %w", streamID, err)
	}
	c.logger.Info().Str("stream", string(streamID)).Msg("publishing")
	return nil
}

func (c *Controller) runRemote(ctx context.Context, engine core.Engine) error {
	handle, err := c.awaitSurface(ctx, "remote", c.deps.Remote)
	if err != nil {
		return c.failPath(false, err)
	}
	view := c.binding(handle)
	streamID := c.opts.PlayStreamID

	err = c.call("start_playing", func() error { return engine.StartPlayingStream(ctx, streamID, view) })
	c.mu.Lock()
	if err == nil {
		c.playing = true
		c.remote = PhasePlaying
	}
	torn := c.torn
	c.mu.Unlock()
	if torn {
		return ErrTornDown
	}
	if err != nil {
		return c.failPath(false, fmt.Errorf("start playing %s: %w", streamID, err))
	}
	c.logger.Info().Str("stream", string(streamID)).Msg("playing")
	return nil
}

func (c *Controller) awaitSurface(ctx context.Context, side string, s core.Surface) (domain.SurfaceHandle, error) {
	if s == nil {
		return 0, fmt.Errorf("%w: no %s surface", ErrSurfaceNotReady, side)
	}
	wctx := ctx
	if c.opts.SurfaceTimeout > 0 {
		var cancel context.CancelFunc
		wctx, cancel = context.WithTimeout(ctx, c.opts.SurfaceTimeout)
		defer cancel()
	}

	start := time.Now()
	handle, err := s.Await(wctx)
	if err == nil && handle == 0 {
		err = domain.ErrSurfaceUnbound
	}
	c.deps.Metrics.SurfaceWaited(side, time.Since(start), err)
	if err != nil {
		if c.abandoned() {
			return 0, ErrTornDown
		}
		return 0, fmt.Errorf("%w: %s surface: %v", ErrSurfaceNotReady, side, err)
	}
	c.logger.Debug().Str("side", side).Uint64("handle", uint64(handle)).Msg("surface ready")
	return handle, nil
}

func (c *Controller) binding(handle domain.SurfaceHandle) domain.MediaViewBinding {
	return domain.MediaViewBinding{
		Handle:          handle,
		ViewMode:        c.opts.ViewMode,
		BackgroundColor: c.opts.BackgroundColor,
	}
}

// ToggleCamera switches front/back camera and restarts preview on the same surface.
// Only available once the session is live.
func (c *Controller) ToggleCamera(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	if c.torn || c.state != StatePublishingPlaying || c.engine == nil {
		c.mu.Unlock()
		return ErrEngineNotReady
	}
	engine, view, next := c.engine, c.localView, c.facing.Toggle()
	c.mu.Unlock()

	if err := c.call("use_front_camera", func() error {
		return engine.UseFrontCamera(ctx, next == domain.CameraFront)
	}); err != nil {
		return fmt.Errorf("switch camera to %s: %w", next, err)
	}

	c.mu.Lock()
	c.facing = next
	c.mu.Unlock()

	if err := c.call("stop_preview", func() error { return engine.StopPreview(ctx) }); err != nil {
		c.logger.Warn().Err(err).Msg("stop preview before rebind")
	}
	err := c.call("start_preview", func() error { return engine.StartPreview(ctx, view) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.previewing = false
		c.local = PhasePublishing
		return fmt.Errorf("restart preview: %w", err)
	}
	c.previewing = true
	c.setStateLocked(StatePublishingPlaying)
	c.logger.Info().Str("facing", next.String()).Msg("camera switched")
	return nil
}

type teardownStep struct {
	name string
	run  func(context.Context) error
}

// Teardown releases whatever was acquired, in reverse order, each step best-effort.
// Safe to call from any state and more than once.
func (c *Controller) Teardown(ctx context.Context) {
	c.mu.Lock()
	if c.torn {
		c.mu.Unlock()
		return
	}
	c.torn = true
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	// Let the in-flight step settle so its resource is recorded before release.
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	engine := c.engine
	id, playID := c.opts.Identity, c.opts.PlayStreamID
	var steps []teardownStep
	if engine != nil && c.previewing {
		steps = append(steps, teardownStep{"stop_preview", engine.StopPreview})
	}
	if engine != nil && c.playing {
		steps = append(steps, teardownStep{"stop_playing", func(ctx context.Context) error {
			return engine.StopPlayingStream(ctx, playID)
		}})
	}
	if engine != nil && c.publishing {
		steps = append(steps, teardownStep{"stop_publishing", func(ctx context.Context) error {
			return engine.StopPublishingStream(ctx, id.StreamID)
		}})
	}
	if engine != nil && c.loggedIn {
		steps = append(steps, teardownStep{"logout_room", func(ctx context.Context) error {
			return engine.LogoutRoom(ctx, id.RoomID)
		}})
	}
	if engine != nil {
		steps = append(steps, teardownStep{"destroy_engine", c.deps.Factory.Destroy})
	}
	leased := c.leased
	c.mu.Unlock()

	var errs []error
	for _, step := range steps {
		if err := c.runStep(ctx, step); err != nil {
			errs = append(errs, err)
		}
	}
	if leased {
		c.deps.Lease.Release(c.id)
	}

	c.mu.Lock()
	c.engine = nil
	c.leased = false
	c.previewing, c.playing, c.publishing, c.loggedIn = false, false, false, false
	c.teardownErrs = errs
	c.setStateLocked(StateTornDown)
	for wid, ch := range c.watchers {
		close(ch)
		delete(c.watchers, wid)
	}
	c.mu.Unlock()

	c.logger.Info().Int("steps", len(steps)).Int("failed", len(errs)).Msg("torn down")
}

func (c *Controller) runStep(ctx context.Context, step teardownStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		c.deps.Metrics.EngineCall(step.name, err)
		if err != nil {
			err = fmt.Errorf("%w: %s: %v", ErrTeardownStepFailed, step.name, err)
			c.deps.Metrics.TeardownFailure(step.name)
			c.logger.Warn().Err(err).Str("step", step.name).Msg("teardown step failed")
		}
	}()
	return step.run(ctx)
}

// Status returns the current snapshot.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Watch streams status snapshots on every change until teardown closes the channel.
// Slow readers miss intermediate snapshots.
func (c *Controller) Watch() (<-chan Status, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan Status, 8)
	if c.torn && c.state == StateTornDown {
		ch <- c.statusLocked()
		close(ch)
		return ch, func() {}
	}
	id := c.nextWatcher
	c.nextWatcher++
	c.watchers[id] = ch
	ch <- c.statusLocked()
	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if w, ok := c.watchers[id]; ok {
			close(w)
			delete(c.watchers, id)
		}
	}
}

func (c *Controller) statusLocked() Status {
	s := Status{
		State:        c.state,
		Local:        c.local,
		Remote:       c.remote,
		Facing:       c.facing.String(),
		RoomID:       c.opts.Identity.RoomID,
		UserID:       c.opts.Identity.User.ID,
		StreamID:     c.opts.Identity.StreamID,
		PlayStreamID: c.opts.PlayStreamID,
		UpdatedAt:    c.updatedAt,
		Permissions:  c.perms,
	}
	if c.reason != nil {
		s.Reason = c.reason.Error()
	}
	if c.localErr != nil {
		s.LocalError = c.localErr.Error()
	}
	if c.remoteErr != nil {
		s.RemoteError = c.remoteErr.Error()
	}
	for _, err := range c.teardownErrs {
		s.TeardownErrors = append(s.TeardownErrors, err.Error())
	}
	return s
}

// TeardownErrors returns the failures collected by the last teardown.
func (c *Controller) TeardownErrors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.teardownErrs...)
}

func (c *Controller) call(op string, fn func() error) error {
	err := fn()
	c.deps.Metrics.EngineCall(op, err)
	if err != nil {
		c.logger.Error().Err(err).Str("op", op).Msg("engine call failed")
	} else {
		c.logger.Debug().Str("op", op).Msg("engine call ok")
	}
	return err
}

func (c *Controller) abandoned() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.torn
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.torn {
		return ErrTornDown
	}
	c.failLocked(err)
	return err
}

func (c *Controller) failLocked(err error) {
	c.reason = err
	c.setStateLocked(StateError)
	c.logger.Error().Err(err).Msg("session failed")
}

func (c *Controller) failPath(local bool, err error) error {
	if errors.Is(err, ErrTornDown) {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if local {
		c.local, c.localErr = PhaseFailed, err
	} else {
		c.remote, c.remoteErr = PhaseFailed, err
	}
	c.updatedAt = time.Now()
	c.notifyLocked()
	return err
}

func (c *Controller) setStateLocked(to State) bool {
	if !CanTransition(c.state, to) {
		c.logger.Warn().Str("from", string(c.state)).Str("to", string(to)).Msg("illegal transition ignored")
		return false
	}
	c.state = to
	c.updatedAt = time.Now()
	c.deps.Metrics.Transition(string(to))
	c.notifyLocked()
	return true
}

func (c *Controller) notifyLocked() {
	snap := c.statusLocked()
	for _, ch := range c.watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}
