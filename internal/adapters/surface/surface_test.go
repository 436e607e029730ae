package surface

import (
	"context"
	"testing"
	"time"

	"github.com/dkeye/liveroom/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlot_AwaitBlocksUntilMount(t *testing.T) {
	slot := NewSlot(SideLocal)
	got := make(chan domain.SurfaceHandle, 1)
	go func() {
		h, err := slot.Await(context.Background())
		assert.NoError(t, err)
		got <- h
	}()

	select {
	case <-got:
		t.Fatal("await returned before mount")
	case <-time.After(20 * time.Millisecond):
	}

	require.NoError(t, slot.Mount(7, nil))
	select {
	case h := <-got:
		assert.Equal(t, domain.SurfaceHandle(7), h)
	case <-time.After(time.Second):
		t.Fatal("await did not wake up")
	}
}

func TestSlot_AwaitHonoursContext(t *testing.T) {
	slot := NewSlot(SideRemote)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	h, err := slot.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, h)
}

func TestSlot_MountRules(t *testing.T) {
	slot := NewSlot(SideLocal)
	assert.ErrorIs(t, slot.Mount(0, nil), domain.ErrSurfaceUnbound)
	require.NoError(t, slot.Mount(1, nil))
	assert.ErrorIs(t, slot.Mount(2, nil), ErrAlreadyMounted)

	h, err := slot.Unmount()
	require.NoError(t, err)
	assert.Equal(t, domain.SurfaceHandle(1), h)
	_, err = slot.Unmount()
	assert.ErrorIs(t, err, ErrNotMounted)

	_, ok := slot.Handle()
	assert.False(t, ok)
	require.NoError(t, slot.Mount(3, nil))
	h, ok = slot.Handle()
	assert.True(t, ok)
	assert.Equal(t, domain.SurfaceHandle(3), h)
}

func TestBoard_MountResolvesSink(t *testing.T) {
	b := NewBoard()
	sink := NewCountingSink("test")

	h, err := b.Mount(SideLocal, sink)
	require.NoError(t, err)
	assert.NotZero(t, h)

	got, ok := b.Sink(h)
	require.True(t, ok)
	got.Draw([]byte{1, 2, 3})
	assert.Equal(t, uint64(1), sink.Frames())
	assert.Equal(t, uint64(3), sink.Bytes())

	awaited, err := b.Local().Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h, awaited)

	h2, err := b.Mount(SideRemote, nil)
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)

	require.NoError(t, b.Unmount(SideLocal))
	_, ok = b.Sink(h)
	assert.False(t, ok)
	assert.ErrorIs(t, b.Unmount(SideLocal), ErrNotMounted)

	_, err = b.Mount("side", nil)
	assert.ErrorIs(t, err, ErrUnknownSide)
}
