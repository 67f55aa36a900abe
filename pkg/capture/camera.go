//go:build linux

package capture

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blackjack/webcam"
	"github.com/disintegration/imaging"

	"github.com/zeldalabs/zelda/pkg/core"
)

const (
	defaultCameraDevice = "/dev/video0"
	frameWaitSeconds    = 5
)

// Camera captures frames from a V4L2 device streaming MJPEG.
type Camera struct {
	mu     sync.Mutex
	cam    *webcam.Webcam
	closed bool
}

// NewCamera opens the default camera device and starts streaming in an
// MJPEG pixel format.
func NewCamera() (*Camera, error) {
	return newCamera(defaultCameraDevice)
}

func newCamera(device string) (*Camera, error) {
	cam, err := webcam.Open(device)
	if err != nil {
		return nil, core.NewDeviceError("camera", fmt.Sprintf("open camera %s: %v", device, err))
	}

	var format webcam.PixelFormat
	for f, desc := range cam.GetSupportedFormats() {
		if strings.Contains(strings.ToUpper(desc), "JPEG") {
			format = f
			break
		}
	}
	if format == 0 {
		_ = cam.Close()
		return nil, core.NewDeviceError("camera", fmt.Sprintf("camera %s has no MJPEG format", device))
	}

	if _, _, _, err := cam.SetImageFormat(format, maxFrameDim, maxFrameDim); err != nil {
		_ = cam.Close()
		return nil, core.NewDeviceError("camera", fmt.Sprintf("set camera format: %v", err))
	}
	if err := cam.StartStreaming(); err != nil {
		_ = cam.Close()
		return nil, core.NewDeviceError("camera", fmt.Sprintf("start camera stream: %v", err))
	}
	return &Camera{cam: cam}, nil
}

// Frame implements Source. It re-encodes the MJPEG frame so output frames
// are always bounded and baseline JPEG.
func (c *Camera) Frame() (core.ImageFrame, error) {
	c.mu.Lock()
	cam, closed := c.cam, c.closed
	c.mu.Unlock()
	if closed {
		return core.ImageFrame{}, core.ErrSourceExhausted
	}

	if err := cam.WaitForFrame(frameWaitSeconds); err != nil {
		var timeout *webcam.Timeout
		if errors.As(err, &timeout) {
			return core.ImageFrame{}, core.NewDeviceError("camera", "camera frame timed out")
		}
		return core.ImageFrame{}, core.ErrSourceExhausted
	}
	raw, err := cam.ReadFrame()
	if err != nil {
		return core.ImageFrame{}, core.NewDeviceError("camera", fmt.Sprintf("read camera frame: %v", err))
	}

	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return core.ImageFrame{}, fmt.Errorf("decode camera frame: %w", err)
	}
	return EncodeJPEG(img)
}

// Close implements Source.
func (c *Camera) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.cam.StopStreaming()
	_ = c.cam.Close()
}
