package retry

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
)

func TestPollStopsOnSuccess(t *testing.T) {
	calls := 0
	ok, err := Poll(context.Background(), Policy{MaxAttempts: 5, Interval: time.Millisecond}, func(_ context.Context, attempt int) bool {
		calls++
		return attempt == 2
	})
	if err != nil || !ok {
		t.Fatalf("expected success, got ok=%v err=%v", ok, err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestPollExhausted(t *testing.T) {
	calls := 0
	ok, err := Poll(context.Background(), Policy{MaxAttempts: 4, Interval: time.Millisecond}, func(context.Context, int) bool {
		calls++
		return false
	})
	if ok || err != nil {
		t.Fatalf("expected exhaustion without error, got ok=%v err=%v", ok, err)
	}
	if calls != 4 {
		t.Fatalf("expected 4 calls, got %d", calls)
	}
}

func TestPollZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	Poll(context.Background(), Policy{}, func(context.Context, int) bool {
		calls++
		return false
	})
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestPollCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Poll(ctx, Policy{MaxAttempts: 3, Interval: time.Second}, func(context.Context, int) bool { return false })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	errBoom := errors.New("boom")
	err := Do(context.Background(), Policy{MaxAttempts: 3, Interval: time.Millisecond}, func(context.Context) error {
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestBackOffDelays(t *testing.T) {
	tests := []struct {
		policy   Policy
		expected []time.Duration
	}{
		{Policy{MaxAttempts: 3, Interval: 100 * time.Millisecond}, []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}},
		{Policy{MaxAttempts: 4, Interval: 100 * time.Millisecond, Backoff: 2}, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond}},
		{Policy{MaxAttempts: 4, Interval: 100 * time.Millisecond, Backoff: 2, MaxInterval: 250 * time.Millisecond}, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond}},
		{Policy{}, nil},
	}
	for _, tt := range tests {
		b := tt.policy.BackOff()
		b.Reset()
		var got []time.Duration
		for d := b.NextBackOff(); d != backoff.Stop; d = b.NextBackOff() {
			got = append(got, d)
		}
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("delays of %+v = %v; want %v", tt.policy, got, tt.expected)
		}
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), Policy{MaxAttempts: 5, Interval: time.Millisecond}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success after 3 calls, got err=%v calls=%d", err, calls)
	}
}

func TestOr(t *testing.T) {
	p := Policy{MaxAttempts: 2}.Or(Policy{MaxAttempts: 5, Interval: time.Second})
	if p.MaxAttempts != 2 || p.Interval != time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestUntilTimeout(t *testing.T) {
	err := Until(context.Background(), 20*time.Millisecond, 5*time.Millisecond, func(context.Context) bool { return false })
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestUntilChecksAtDeadline(t *testing.T) {
	start := time.Now()
	err := Until(context.Background(), 30*time.Millisecond, time.Second, func(context.Context) bool {
		return time.Since(start) >= 30*time.Millisecond
	})
	if err != nil {
		t.Fatalf("expected the condition to hold at the deadline, got %v", err)
	}
}

func TestUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Until(ctx, time.Second, 10*time.Millisecond, func(context.Context) bool { return false })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
