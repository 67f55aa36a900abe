package capture

import (
	"bytes"
	"image"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeldalabs/zelda/pkg/core"
)

func TestEncodeJPEG_ScalesDownLargeFrames(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2048, 512))

	frame, err := EncodeJPEG(img)
	require.NoError(t, err)
	require.Equal(t, core.MIMEImageJPEG, frame.MIME)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame.Data))
	require.NoError(t, err)
	require.LessOrEqual(t, cfg.Width, 1024)
	require.LessOrEqual(t, cfg.Height, 1024)
	// Aspect ratio is preserved by the fit.
	require.Equal(t, 1024, cfg.Width)
	require.Equal(t, 256, cfg.Height)
}

func TestEncodeJPEG_NeverUpscales(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 320, 200))

	frame, err := EncodeJPEG(img)
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame.Data))
	require.NoError(t, err)
	require.Equal(t, 320, cfg.Width)
	require.Equal(t, 200, cfg.Height)
}
