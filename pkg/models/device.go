package models

import "runtime"

// RuntimeDeviceInfo describes the host process. Callers embedding the SDK in
// a UI shell pass a richer snapshot through the tracker options instead.
func RuntimeDeviceInfo() *DeviceInfo {
	return &DeviceInfo{
		OS:          runtime.GOOS,
		OSVersion:   "unknown",
		DeviceModel: runtime.GOARCH,
		Network:     "unknown",
	}
}
