package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateAcquiringPermissions, true},
		{StateIdle, StateEngineReady, false},
		{StateAcquiringPermissions, StateEngineReady, true},
		{StateAcquiringPermissions, StateError, true},
		{StateEngineReady, StateRoomJoined, true},
		{StateEngineReady, StatePreviewing, false},
		{StateRoomJoined, StatePreviewing, true},
		{StateRoomJoined, StatePublishingPlaying, false},
		{StatePreviewing, StatePublishingPlaying, true},
		{StatePublishingPlaying, StatePublishingPlaying, true},
		{StatePublishingPlaying, StateError, false},
		{StateError, StateRoomJoined, false},
		{StateError, StateTornDown, true},
		{StateIdle, StateTornDown, true},
		{StateAcquiringPermissions, StateTornDown, true},
		{StateTornDown, StateTornDown, false},
		{StateTornDown, StateIdle, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestState_Connected(t *testing.T) {
	assert.True(t, StatePublishingPlaying.Connected())
	assert.False(t, StatePreviewing.Connected())
	assert.False(t, StateError.Connected())
	assert.True(t, StateTornDown.Terminal())
}
