package capture

import (
	"fmt"

	"github.com/kbinani/screenshot"

	"github.com/zeldalabs/zelda/pkg/core"
)

// Screen captures the primary display.
type Screen struct {
	display int
}

// NewScreen opens a screen source over the primary display.
func NewScreen() (*Screen, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, core.NewDeviceError("screen", "no active displays")
	}
	return &Screen{display: 0}, nil
}

// Frame implements Source.
func (s *Screen) Frame() (core.ImageFrame, error) {
	img, err := screenshot.CaptureDisplay(s.display)
	if err != nil {
		return core.ImageFrame{}, core.NewDeviceError("screen", fmt.Sprintf("capture display %d: %v", s.display, err))
	}
	return EncodeJPEG(img)
}

// Close implements Source.
func (s *Screen) Close() {}
