// Package date resolves the weekday names used by course listings.
package date

import (
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// ParseWeekday resolves a short or long weekday name in one of the known
// languages. Listings abbreviate with or without a trailing dot ("Mo.").
func ParseWeekday(day string) (time.Weekday, string, bool) {
	d := strings.TrimSuffix(strings.TrimSpace(day), ".")
	for _, tables := range [][]langMap{shortDayNames, longDayNames} {
		for _, lm := range tables {
			if wd, ok := lm.namesMap[d]; ok {
				return wd, lm.lang, true
			}
		}
	}
	return time.Sunday, "", false
}

// NextOccurrence returns the start of the next day on or after now that
// falls on wd.
func NextOccurrence(now time.Time, wd time.Weekday) time.Time {
	offset := (int(wd) - int(now.Weekday()) + 7) % 7
	y, m, d := now.Date()
	return time.Date(y, m, d+offset, 0, 0, 0, 0, now.Location())
}

// FormatDay formats t as a long date in the given locale, eg.
// "Montag, 20. Oktober 2026" for de_DE.
func FormatDay(t time.Time, lang string) string {
	switch monday.Locale(lang) {
	case monday.LocaleDeDE:
		return monday.Format(t, "Monday, 2. January 2006", monday.LocaleDeDE)
	case monday.LocaleFrFR:
		return monday.Format(t, "Monday 2 January 2006", monday.LocaleFrFR)
	default:
		return t.Format("Monday, January 2 2006")
	}
}
