// Package schedule delays a booking run until the registration opens.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/retry"
)

// Clock is a time of day.
type Clock struct {
	Hour, Minute, Second int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ParseClock parses HH:MM or HH:MM:SS.
func ParseClock(s string) (Clock, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}, nil
		}
	}
	return Clock{}, fmt.Errorf("invalid clock time %q, expected HH:MM or HH:MM:SS", s)
}

// NextAt returns the next point in time after now showing clock c, today
// or tomorrow, in the location of now.
func NextAt(now time.Time, c Clock) time.Time {
	t := time.Date(now.Year(), now.Month(), now.Day(), c.Hour, c.Minute, c.Second, 0, now.Location())
	if !t.After(now) {
		t = time.Date(now.Year(), now.Month(), now.Day()+1, c.Hour, c.Minute, c.Second, 0, now.Location())
	}
	return t
}

// WaitUntil blocks until the next occurrence of clock or until ctx is
// done.
func WaitUntil(ctx context.Context, clock string, now time.Time) error {
	c, err := ParseClock(clock)
	if err != nil {
		return err
	}
	at := NextAt(now, c)
	log.LoggerFromContext(ctx).Info(fmt.Sprintf("waiting until %s", at.Format(time.DateTime)),
		slog.Duration("in", at.Sub(now)))
	return retry.Sleep(ctx, at.Sub(now))
}

// IsTimeToBook reports whether now falls into the minute of c.
func IsTimeToBook(now time.Time, c Clock) bool {
	return now.Hour() == c.Hour && now.Minute() == c.Minute
}
