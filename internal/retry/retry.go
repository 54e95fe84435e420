package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/farxc/licitacoes_analytics/internal/logger"
)

const component = "Retry"

// Policy describes an exponential backoff schedule.
type Policy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultPolicy waits 1s, 2s, 4s... capped at one minute, for three attempts.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: time.Second,
		MaxInterval:     time.Minute,
		Multiplier:      2,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.InitialInterval
	exp.MaxInterval = p.MaxInterval
	exp.Multiplier = p.Multiplier
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
}

// Permanent marks err as not worth retrying. Do returns it unwrapped.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the attempts run
// out or ctx is done. The last error is returned.
func Do[T any](ctx context.Context, p Policy, log *logger.Logger, name string, op func(context.Context) (T, error)) (T, error) {
	attempt := 0
	return backoff.RetryNotifyWithData(
		func() (T, error) {
			attempt++
			return op(ctx)
		},
		p.backOff(ctx),
		func(err error, wait time.Duration) {
			log.Warn(component, "Attempt %d/%d of %s failed: %v. Retrying in %s", attempt, p.MaxAttempts, name, err, wait)
		},
	)
}
