package live

import (
	"sync"
	"time"
)

// ActivityClock records the last moment of genuine user activity: voiced
// microphone input or a typed message. Model output does not touch it.
type ActivityClock struct {
	mu   sync.Mutex
	last time.Time
}

// NewActivityClock starts the clock at now.
func NewActivityClock() *ActivityClock {
	return &ActivityClock{last: time.Now()}
}

// Touch marks activity at the current time.
func (c *ActivityClock) Touch() {
	c.mu.Lock()
	c.last = time.Now()
	c.mu.Unlock()
}

// Last returns the most recent activity time.
func (c *ActivityClock) Last() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
