package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when the process runs more than limit goroutines.
func GoroutineCountCheck(limit int) CheckFunc {
	return GaugeCheck("goroutine count", runtime.NumGoroutine, limit)
}

// GaugeCheck fails when value() exceeds limit.
func GaugeCheck(what string, value func() int, limit int) CheckFunc {
	return func(_ context.Context) error {
		if n := value(); n > limit {
			return errors.Errorf("%s %d exceeds limit %d", what, n, limit)
		}
		return nil
	}
}

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingCheck fails when p cannot be reached.
func PingCheck(p Pinger) CheckFunc {
	return func(ctx context.Context) error {
		return p.Ping(ctx)
	}
}
