package autoclick

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Scheduler runs fn every interval until the returned cancel func is called.
// The first run happens one full interval after Every returns. Cancel must
// not block on fn.
type Scheduler interface {
	Every(interval time.Duration, fn func()) (cancel func())
}

// ClockScheduler is a Scheduler driven by a clock's tickers.
type ClockScheduler struct {
	clock clock.WithTicker
}

// NewClockScheduler returns a scheduler on c, or on the real clock when c is
// nil.
func NewClockScheduler(c clock.WithTicker) *ClockScheduler {
	if c == nil {
		c = clock.RealClock{}
	}
	return &ClockScheduler{clock: c}
}

// Every implements Scheduler.
func (s *ClockScheduler) Every(interval time.Duration, fn func()) func() {
	ticker := s.clock.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C():
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
