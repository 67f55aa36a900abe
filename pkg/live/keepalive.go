package live

import (
	"context"
	"log/slog"
	"time"
)

const (
	stillTherePrompt = "Are you still there?"
	pausePrompt      = "I'll pause until you're back. Just say anything to continue."
)

type monitorState int

const (
	stateIdle monitorState = iota
	stateAwaiting
	statePaused
)

// MonitorConfig tunes the idle keep-alive loop.
type MonitorConfig struct {
	Interval      time.Duration
	IdleThreshold time.Duration
	MaxUnanswered int
}

// DefaultMonitorConfig matches a one-minute check cadence with a 90-second
// idle threshold and three unanswered nudges before pausing.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:      60 * time.Second,
		IdleThreshold: 90 * time.Second,
		MaxUnanswered: 3,
	}
}

// Monitor nudges the model when the user goes quiet, and after too many
// unanswered nudges tells it to pause until the user returns. Genuine user
// activity at any point resets the cycle.
type Monitor struct {
	cfg   MonitorConfig
	clock *ActivityClock
	send  func(text string) error
	log   *slog.Logger

	state        monitorState
	counter      int
	lastPromptAt time.Time
}

// NewMonitor creates an idle monitor that submits prompts through send.
func NewMonitor(cfg MonitorConfig, clock *ActivityClock, send func(string) error, log *slog.Logger) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultMonitorConfig().Interval
	}
	if cfg.MaxUnanswered <= 0 {
		cfg.MaxUnanswered = DefaultMonitorConfig().MaxUnanswered
	}
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{cfg: cfg, clock: clock, send: send, log: log}
}

// Run ticks until the context ends.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := m.tick(now); err != nil {
				// Retry on the next interval; a failed nudge must not kill
				// the session.
				m.log.Warn("keep-alive send failed", "err", err)
			}
		}
	}
}

func (m *Monitor) tick(now time.Time) error {
	last := m.clock.Last()
	if last.After(m.lastPromptAt) {
		// The user did something since the last nudge.
		m.state = stateIdle
		m.counter = 0
	}

	switch m.state {
	case statePaused:
		return nil

	case stateAwaiting:
		m.counter++
		if m.counter >= m.cfg.MaxUnanswered {
			m.log.Info("user unresponsive, pausing conversation", "unanswered", m.counter)
			if err := m.send(pausePrompt); err != nil {
				return err
			}
			m.counter = 0
			m.state = statePaused
			m.lastPromptAt = now
		}
		return nil

	default:
		if now.Sub(last) < m.cfg.IdleThreshold {
			return nil
		}
		m.log.Info("user idle, sending keep-alive", "idle", now.Sub(last))
		if err := m.send(stillTherePrompt); err != nil {
			return err
		}
		m.counter = 1
		m.state = stateAwaiting
		m.lastPromptAt = now
		return nil
	}
}
