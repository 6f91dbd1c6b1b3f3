package session

import (
	"sync"
	"time"
)

// Scheduler runs fn every d until the returned stop func is called.
// stop must be safe to call more than once and from inside fn.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
}

type tickerScheduler struct{}

// TickerScheduler returns a Scheduler backed by one time.Ticker goroutine per call.
func TickerScheduler() Scheduler { return tickerScheduler{} }

func (tickerScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	var once sync.Once

	go func() {
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
