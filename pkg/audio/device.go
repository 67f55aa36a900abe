// Package audio provides microphone capture and speaker playback for live
// sessions: 16-bit little-endian PCM, mono, capture at 16kHz and playback
// at 24kHz.
package audio

import (
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"
)

// Device owns the platform audio context shared by capture devices.
type Device struct {
	ctx *malgo.AllocatedContext
	log *slog.Logger
}

// NewDevice initializes the platform audio backend.
func NewDevice(log *slog.Logger) (*Device, error) {
	if log == nil {
		log = slog.Default()
	}
	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &Device{ctx: ctx, log: log}, nil
}

// Close releases the audio backend. Microphones opened from this device must
// be closed first.
func (d *Device) Close() {
	if d == nil || d.ctx == nil {
		return
	}
	_ = d.ctx.Uninit()
	d.ctx = nil
}
