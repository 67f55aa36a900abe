package live

import (
	"context"
	"fmt"
)

// runMux drains the outbound queue onto the transport in FIFO order. It is
// the only goroutine that sends realtime units, so ordering within each
// producer is preserved.
func (s *Session) runMux(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case unit, ok := <-s.out:
			if !ok {
				return nil
			}
			if err := s.conn.Send(unit); err != nil {
				return fmt.Errorf("send outbound unit: %w", err)
			}
		}
	}
}
