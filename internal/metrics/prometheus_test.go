package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.EngineCall("login_room", nil)
	m.EngineCall("login_room", errors.New("boom"))
	m.EngineCall("login_room", nil)
	m.Transition("room_joined")
	m.TeardownFailure("logout_room")
	m.ObserverPanic()
	m.RoomEvent("stream")
	m.SurfaceWaited("local", 20*time.Millisecond, nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EngineCalls.WithLabelValues("login_room", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EngineCalls.WithLabelValues("login_room", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("room_joined")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TeardownFailures.WithLabelValues("logout_room")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ObserverPanics))
	assert.Equal(t, 1, testutil.CollectAndCount(m.SurfaceWait))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.EngineCall("x", nil)
		m.Transition("x")
		m.TeardownFailure("x")
		m.SurfaceWaited("local", time.Second, nil)
		m.ObserverPanic()
		m.RoomEvent("x")
	})
}
