package domain

import (
	"encoding/hex"
	"errors"
	"fmt"
)

const appSignLen = 64

var (
	ErrAppIDZero       = errors.New("app id must be non-zero")
	ErrAppSignInvalid  = errors.New("app sign must be 64 hex characters")
	ErrScenarioUnknown = errors.New("unknown scenario")
)

type Scenario int

const (
	ScenarioGeneral Scenario = iota
	ScenarioCommunication
	ScenarioLive
	ScenarioStandardVideoCall
)

func (s Scenario) String() string {
	switch s {
	case ScenarioGeneral:
		return "general"
	case ScenarioCommunication:
		return "communication"
	case ScenarioLive:
		return "live"
	case ScenarioStandardVideoCall:
		return "standard_video_call"
	default:
		return fmt.Sprintf("scenario(%d)", int(s))
	}
}

// Profile is the fixed application profile an engine is created with.
type Profile struct {
	AppID    uint32
	AppSign  string
	Scenario Scenario
}

func (p Profile) Validate() error {
	if p.AppID == 0 {
		return ErrAppIDZero
	}
	if len(p.AppSign) != appSignLen {
		return ErrAppSignInvalid
	}
	if _, err := hex.DecodeString(p.AppSign); err != nil {
		return ErrAppSignInvalid
	}
	if p.Scenario < ScenarioGeneral || p.Scenario > ScenarioStandardVideoCall {
		return ErrScenarioUnknown
	}
	return nil
}
