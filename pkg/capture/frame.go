// Package capture produces JPEG video frames for realtime input, either
// from the screen or from a camera. Frames are scaled to fit within
// 1024x1024 before encoding.
package capture

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/zeldalabs/zelda/pkg/core"
)

const maxFrameDim = 1024

// Source yields one encoded frame per call. Implementations report
// core.ErrSourceExhausted once no further frames will be produced.
type Source interface {
	Frame() (core.ImageFrame, error)
	Close()
}

// EncodeJPEG scales img down to fit within maxFrameDim on both axes
// (never upscaling) and encodes it as JPEG.
func EncodeJPEG(img image.Image) (core.ImageFrame, error) {
	bounds := img.Bounds()
	if bounds.Dx() > maxFrameDim || bounds.Dy() > maxFrameDim {
		img = imaging.Fit(img, maxFrameDim, maxFrameDim, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return core.ImageFrame{}, fmt.Errorf("encode frame: %w", err)
	}
	return core.ImageFrame{Data: buf.Bytes(), MIME: core.MIMEImageJPEG}, nil
}
