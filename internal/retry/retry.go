// Package retry provides the bounded polling primitive shared by all waits
// of the booking workflow.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jakopako/kursbot/internal/log"
)

// ErrTimeout is returned by Until when the condition did not hold in time.
var ErrTimeout = errors.New("condition not met before timeout")

var errPending = errors.New("condition not met")

// Policy describes a bounded sequence of attempts. The delay between
// attempt n and n+1 is Interval * Backoff^n, capped at MaxInterval.
// A Backoff of 0 or 1 means a fixed interval.
type Policy struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
	Backoff     float64       `yaml:"backoff,omitempty"`
	MaxInterval time.Duration `yaml:"max_interval,omitempty"`
}

// Or fills the zero fields of p from d.
func (p Policy) Or(d Policy) Policy {
	if p.MaxAttempts == 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.Interval == 0 {
		p.Interval = d.Interval
	}
	if p.Backoff == 0 {
		p.Backoff = d.Backoff
	}
	if p.MaxInterval == 0 {
		p.MaxInterval = d.MaxInterval
	}
	return p
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// BackOff returns the delays of p. It stops after MaxAttempts-1 delays.
func (p Policy) BackOff() backoff.BackOff {
	var b backoff.BackOff
	if p.Backoff > 1 {
		e := backoff.NewExponentialBackOff()
		e.InitialInterval = p.Interval
		e.Multiplier = p.Backoff
		e.RandomizationFactor = 0
		e.MaxElapsedTime = 0
		e.MaxInterval = time.Duration(math.MaxInt64)
		if p.MaxInterval > 0 {
			e.MaxInterval = p.MaxInterval
		}
		e.Reset()
		b = e
	} else {
		d := p.Interval
		if p.MaxInterval > 0 && d > p.MaxInterval {
			d = p.MaxInterval
		}
		b = backoff.NewConstantBackOff(d)
	}
	return backoff.WithMaxRetries(b, uint64(p.attempts()-1))
}

// Poll calls cond until it reports true or the attempts are used up. It
// sleeps between attempts, never after the last one. The error is only
// set when ctx ends the loop early.
func Poll(ctx context.Context, p Policy, cond func(ctx context.Context, attempt int) bool) (bool, error) {
	attempt := 0
	err := backoff.Retry(func() error {
		defer func() { attempt++ }()
		if cond(ctx, attempt) {
			return nil
		}
		return errPending
	}, backoff.WithContext(p.BackOff(), ctx))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errPending):
		return false, nil
	default:
		return false, err
	}
}

// Do runs op until it succeeds and returns the last error otherwise.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	logger := log.LoggerFromContext(ctx)
	return backoff.RetryNotify(func() error {
		return op(ctx)
	}, backoff.WithContext(p.BackOff(), ctx), func(err error, d time.Duration) {
		logger.Debug(fmt.Sprintf("attempt failed: %v, retrying in %v", err, d))
	})
}

// Until checks cond every interval until it holds or timeout elapses.
// The condition is checked once more when the timeout is reached.
func Until(ctx context.Context, timeout, interval time.Duration, cond func(ctx context.Context) bool) error {
	if timeout <= 0 {
		if cond(ctx) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrTimeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := backoff.Retry(func() error {
		if cond(ctx) {
			return nil
		}
		return errPending
	}, backoff.WithContext(backoff.NewConstantBackOff(interval), tctx))
	if err == nil {
		return nil
	}
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	if cond(ctx) {
		return nil
	}
	return ErrTimeout
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
