package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// Pinger is anything that can report its reachability, such as the
// back-office client, a pgx pool or a redis client wrapper.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails while p is unreachable.
func PingCheck(p Pinger) CheckFunc {
	return p.Ping
}

// GoroutineCountCheck fails when more than threshold goroutines run, which
// usually means leaked builder sessions or stuck upstream calls.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("%d goroutines exceed %d", n, threshold)
		}
		return nil
	}
}
