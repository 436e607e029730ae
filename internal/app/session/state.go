package session

type State string

const (
	StateIdle                 State = "idle"
	StateAcquiringPermissions State = "acquiring_permissions"
	StateEngineReady          State = "engine_ready"
	StateRoomJoined           State = "room_joined"
	StatePreviewing           State = "previewing"
	StatePublishingPlaying    State = "publishing_playing"
	StateError                State = "error"
	StateTornDown             State = "torn_down"
)

var transitions = map[State][]State{
	StateIdle:                 {StateAcquiringPermissions},
	StateAcquiringPermissions: {StateEngineReady, StateError},
	StateEngineReady:          {StateRoomJoined, StateError},
	StateRoomJoined:           {StatePreviewing, StateError},
	StatePreviewing:           {StatePublishingPlaying, StateError},
	StatePublishingPlaying:    {StatePublishingPlaying},
	StateError:                {},
}

// CanTransition reports whether the lifecycle may move from one state to another.
// TornDown is reachable from every state but itself.
func CanTransition(from, to State) bool {
	if from == StateTornDown {
		return false
	}
	if to == StateTornDown {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Connected is what the UI uses to decide whether to show live-session controls.
func (s State) Connected() bool {
	return s == StatePublishingPlaying
}

func (s State) Terminal() bool {
	return s == StateTornDown
}

// PathPhase tracks the local (preview/publish) and remote (play) media paths separately.
type PathPhase string

const (
	PhasePending    PathPhase = "pending"
	PhasePreviewing PathPhase = "previewing"
	PhasePublishing PathPhase = "publishing"
	PhasePlaying    PathPhase = "playing"
	PhaseFailed     PathPhase = "failed"
)
