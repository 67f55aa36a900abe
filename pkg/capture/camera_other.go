//go:build !linux

package capture

import "github.com/zeldalabs/zelda/pkg/core"

// Camera is only backed by V4L2; other platforms report a device error.
type Camera struct{}

// NewCamera reports that camera capture is unsupported on this platform.
func NewCamera() (*Camera, error) {
	return nil, core.NewDeviceError("camera", "camera capture is only supported on linux")
}

// Frame implements Source.
func (c *Camera) Frame() (core.ImageFrame, error) {
	return core.ImageFrame{}, core.ErrSourceExhausted
}

// Close implements Source.
func (c *Camera) Close() {}
