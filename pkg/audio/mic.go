package audio

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/zeldalabs/zelda/pkg/core"
)

// Mic captures PCM audio from the default microphone. The device callback
// appends into an internal buffer; Read drains it, blocking until data
// arrives or the mic is closed.
type Mic struct {
	device *malgo.Device

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// NewMic opens and starts the default capture device.
func (d *Device) NewMic(sampleRate, channels int) (*Mic, error) {
	m := &Mic{
		buf: make([]byte, 0, sampleRate*2),
	}
	m.cond = sync.NewCond(&m.mu)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			m.mu.Lock()
			m.buf = append(m.buf, samples...)
			m.mu.Unlock()
			m.cond.Signal()
		},
	}

	device, err := malgo.InitDevice(d.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, core.NewDeviceError("microphone", fmt.Sprintf("init microphone: %v", err))
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, core.NewDeviceError("microphone", fmt.Sprintf("start microphone: %v", err))
	}
	m.device = device
	return m, nil
}

// Read blocks until captured audio is available and copies up to len(p)
// bytes. After Close it drains the remaining buffer, then reports
// core.ErrSourceExhausted.
func (m *Mic) Read(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for len(m.buf) == 0 && !m.closed {
		m.cond.Wait()
	}
	if len(m.buf) == 0 && m.closed {
		return 0, core.ErrSourceExhausted
	}

	n := copy(p, m.buf)
	m.buf = m.buf[n:]
	return n, nil
}

// Close stops the capture device and wakes any blocked Read.
func (m *Mic) Close() {
	if m == nil {
		return
	}
	if m.device != nil {
		_ = m.device.Stop()
		m.device.Uninit()
		m.device = nil
	}
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	m.cond.Broadcast()
}
