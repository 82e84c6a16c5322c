package monitor

import (
	"context"
	"time"
)

// Scheduler invokes fn every interval until the returned cancel func runs.
type Scheduler interface {
	Start(interval time.Duration, fn func()) context.CancelFunc
}

// TickerScheduler is the wall-clock Scheduler.
type TickerScheduler struct{}

func (TickerScheduler) Start(interval time.Duration, fn func()) context.CancelFunc {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fn()
			case <-ctx.Done():
				return
			}
		}
	}()

	return cancel
}
