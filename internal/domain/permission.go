package domain

import "fmt"

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformDesktop Platform = "desktop"
)

type Capability string

const (
	CapabilityCamera     Capability = "camera"
	CapabilityMicrophone Capability = "microphone"
)

type PermissionState struct {
	Camera     bool
	Microphone bool
}

func (p PermissionState) Granted() bool {
	return p.Camera && p.Microphone
}

func (p PermissionState) String() string {
	return fmt.Sprintf("camera=%t microphone=%t", p.Camera, p.Microphone)
}
