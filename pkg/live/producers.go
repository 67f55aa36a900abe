package live

import (
	"context"
	"errors"
	"time"

	"github.com/zeldalabs/zelda/pkg/capture"
	"github.com/zeldalabs/zelda/pkg/core"
)

const frameInterval = time.Second

// AudioSource is the microphone surface the producer reads from.
type AudioSource interface {
	Read(p []byte) (int, error)
}

// runMicProducer streams microphone chunks into the outbound queue. It
// exits cleanly when the source is exhausted (device closed) and touches
// the activity clock only for chunks that carry voice.
func (s *Session) runMicProducer(ctx context.Context) error {
	buf := make([]byte, s.chunkSize*2)
	for {
		n, err := s.mic.Read(buf)
		if errors.Is(err, core.ErrSourceExhausted) {
			return nil
		}
		if err != nil {
			return err
		}
		chunk := append([]byte(nil), buf[:n]...)
		if hasVoice(chunk) {
			s.clock.Touch()
		}
		select {
		case s.out <- core.AudioChunk{Data: chunk, MIME: core.MIMEAudioPCM}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// runFrameProducer captures one video frame per second. Source exhaustion
// ends frame streaming without ending the session.
func (s *Session) runFrameProducer(ctx context.Context, source capture.Source) error {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		frame, err := source.Frame()
		if errors.Is(err, core.ErrSourceExhausted) {
			s.log.Info("frame source exhausted, stopping video input")
			return nil
		}
		if err != nil {
			return err
		}
		select {
		case s.out <- frame:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// voiceThreshold is the mean absolute 16-bit sample amplitude above which a
// chunk counts as voiced input rather than room noise.
const voiceThreshold = 500

func hasVoice(pcm []byte) bool {
	if len(pcm) < 2 {
		return false
	}
	var sum int64
	samples := len(pcm) / 2
	for i := 0; i < samples; i++ {
		v := int64(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
		if v < 0 {
			v = -v
		}
		sum += v
	}
	return sum/int64(samples) > voiceThreshold
}
