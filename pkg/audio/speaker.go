package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"

	"github.com/zeldalabs/zelda/pkg/core"
)

// Speaker plays PCM audio through the default output device. Playback is
// pull-based: oto drains the internal buffer via the io.Reader side while
// Write feeds it.
type Speaker struct {
	otoCtx *oto.Context

	mu      sync.Mutex
	cond    *sync.Cond
	player  *oto.Player
	buf     []byte
	playing bool
	closed  bool
}

// NewSpeaker initializes the output device at the given sample rate.
// At 24kHz mono 16-bit a 4800-byte buffer is ~100ms of audio; small enough
// to keep latency low without starving the device.
func NewSpeaker(sampleRate, channels int) (*Speaker, error) {
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   4800,
	})
	if err != nil {
		return nil, core.NewDeviceError("speaker", fmt.Sprintf("init speaker: %v", err))
	}
	<-ready

	s := &Speaker{
		otoCtx: otoCtx,
		buf:    make([]byte, 0, sampleRate*4),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Write buffers audio for playback, starting the player on first write.
func (s *Speaker) Write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.buf = append(s.buf, data...)
	if !s.playing {
		s.playing = true
		s.player = s.otoCtx.NewPlayer(s)
		s.player.Play()
	}
	s.cond.Signal()
}

// Read implements io.Reader for the oto player pull side.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.closed {
		s.cond.Wait()
	}
	if s.closed && len(s.buf) == 0 {
		// Feed silence so oto drains gracefully.
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

// Flush drops all buffered audio and resets the player so the next Write
// starts clean.
func (s *Speaker) Flush() {
	s.mu.Lock()
	s.buf = s.buf[:0]
	if s.player != nil && s.playing {
		s.playing = false
		player := s.player
		s.player = nil
		s.mu.Unlock()

		player.Pause()
		player.Reset()
		player.Close()
		return
	}
	s.mu.Unlock()
}

// Close stops playback and wakes any blocked reads.
func (s *Speaker) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.closed = true
	s.cond.Broadcast()
	s.mu.Unlock()

	if s.player != nil {
		s.player.Close()
	}
}
