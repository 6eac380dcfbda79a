package remote

import (
	"context"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
)

// linearBackOff waits base, 2*base, 3*base, ... between attempts.
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.base
}

func (b *linearBackOff) Reset() { b.n = 0 }

// retry runs fn until it succeeds, fails permanently, or MaxAttempts is used up.
// A cancelled ctx stops further attempts.
func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	attempts := c.cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var bo backoff.BackOff = &linearBackOff{base: c.cfg.RetryBaseDelay}
	bo = backoff.WithMaxRetries(bo, uint64(attempts-1))
	bo = backoff.WithContext(bo, ctx)

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo, func(err error, wait time.Duration) {
		retriesTotal.WithLabelValues(op).Inc()
		c.log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("wait", wait).
			Msg("remote call failed, retrying")
	})
}
