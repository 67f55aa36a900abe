package live

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func idleMonitor(clock *ActivityClock, sent *[]string) *Monitor {
	return NewMonitor(MonitorConfig{
		Interval:      time.Second,
		IdleThreshold: time.Millisecond,
		MaxUnanswered: 3,
	}, clock, func(text string) error {
		*sent = append(*sent, text)
		return nil
	}, nil)
}

func TestMonitor_NudgesThenPauses(t *testing.T) {
	clock := NewActivityClock()
	var sent []string
	m := idleMonitor(clock, &sent)

	time.Sleep(5 * time.Millisecond)

	require.NoError(t, m.tick(time.Now()))
	require.Equal(t, []string{stillTherePrompt}, sent)
	require.Equal(t, 1, m.counter)
	require.Equal(t, stateAwaiting, m.state)

	require.NoError(t, m.tick(time.Now()))
	require.Len(t, sent, 1)
	require.Equal(t, 2, m.counter)

	require.NoError(t, m.tick(time.Now()))
	require.Len(t, sent, 2)
	require.Equal(t, pausePrompt, sent[1])
	require.Equal(t, 0, m.counter)
	require.Equal(t, statePaused, m.state)

	// Paused: further silence produces nothing.
	require.NoError(t, m.tick(time.Now()))
	require.Len(t, sent, 2)
}

func TestMonitor_ActivityResetsCycle(t *testing.T) {
	clock := NewActivityClock()
	var sent []string
	m := NewMonitor(MonitorConfig{
		Interval:      time.Second,
		IdleThreshold: 100 * time.Millisecond,
		MaxUnanswered: 3,
	}, clock, func(text string) error {
		sent = append(sent, text)
		return nil
	}, nil)

	time.Sleep(110 * time.Millisecond)
	require.NoError(t, m.tick(time.Now()))
	require.Len(t, sent, 1)
	require.Equal(t, stateAwaiting, m.state)

	time.Sleep(time.Millisecond)
	clock.Touch()

	require.NoError(t, m.tick(time.Now()))
	require.Len(t, sent, 1)
	require.Equal(t, stateIdle, m.state)
	require.Equal(t, 0, m.counter)
}

func TestMonitor_SendFailureRetriesNextTick(t *testing.T) {
	clock := NewActivityClock()
	var sent []string
	fail := true
	m := NewMonitor(MonitorConfig{
		Interval:      time.Second,
		IdleThreshold: time.Millisecond,
		MaxUnanswered: 3,
	}, clock, func(text string) error {
		if fail {
			return errors.New("transport hiccup")
		}
		sent = append(sent, text)
		return nil
	}, nil)

	time.Sleep(5 * time.Millisecond)

	// A failed nudge leaves the monitor idle so the next tick retries.
	require.Error(t, m.tick(time.Now()))
	require.Equal(t, stateIdle, m.state)
	require.Empty(t, sent)

	fail = false
	require.NoError(t, m.tick(time.Now()))
	require.Equal(t, []string{stillTherePrompt}, sent)
	require.Equal(t, stateAwaiting, m.state)
}

func TestMonitor_ActivityUnpauses(t *testing.T) {
	clock := NewActivityClock()
	var sent []string
	m := idleMonitor(clock, &sent)

	time.Sleep(5 * time.Millisecond)
	for i := 0; i < 3; i++ {
		require.NoError(t, m.tick(time.Now()))
	}
	require.Equal(t, statePaused, m.state)

	time.Sleep(time.Millisecond)
	clock.Touch()
	time.Sleep(5 * time.Millisecond)

	// Activity after a pause restarts the cycle from idle.
	require.NoError(t, m.tick(time.Now()))
	require.Equal(t, stateAwaiting, m.state)
	require.Equal(t, stillTherePrompt, sent[len(sent)-1])
}
