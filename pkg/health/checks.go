package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is a dependency with a cheap round trip.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks a Pinger.
func Ping(p Pinger) CheckFunc {
	return p.Ping
}

// Goroutines fails when more than limit goroutines are running, which
// usually means requests are piling up on a stuck dependency.
func Goroutines(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines running, limit %d", n, limit)
		}
		return nil
	}
}
