package booking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/types"
)

// ListingSelectors locate the parts of the course listing. Day, Time,
// Action and the controls are relative to a row.
type ListingSelectors struct {
	Table     string `yaml:"table"`
	Rows      string `yaml:"rows"`
	Day       string `yaml:"day"`
	Time      string `yaml:"time"`
	Action    string `yaml:"action"`
	Book      string `yaml:"book"`
	Waitlist  string `yaml:"waitlist"`
	Autostart string `yaml:"autostart"`
}

func (s ListingSelectors) withDefaults() ListingSelectors {
	def := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	def(&s.Table, "table.bs_kurse")
	def(&s.Rows, "table.bs_kurse tbody tr")
	def(&s.Day, ".bs_stag")
	def(&s.Time, ".bs_szeit")
	def(&s.Action, ".bs_sbuch")
	def(&s.Book, ".bs_btn_buchen")
	def(&s.Waitlist, ".bs_btn_warteliste")
	def(&s.Autostart, ".bs_btn_autostart")
	return s
}

// CourseMatcher finds the listing row of a course slot.
type CourseMatcher struct {
	Selectors ListingSelectors
}

func NewCourseMatcher(s ListingSelectors) *CourseMatcher {
	return &CourseMatcher{Selectors: s.withDefaults()}
}

// Rows returns every listing row that has both a day and a time cell.
func (m *CourseMatcher) Rows(doc *goquery.Document) []types.CourseRow {
	rows := []types.CourseRow{}
	doc.Find(m.Selectors.Rows).Each(func(i int, row *goquery.Selection) {
		day, time, ok := m.slotCells(row)
		if !ok {
			return
		}
		r := types.CourseRow{Index: i, RowID: row.AttrOr("id", ""), Day: day, Time: time}
		if btn := row.Find(m.Selectors.Action).Find(m.Selectors.Book).First(); btn.Length() > 0 {
			r.BookingSelector = m.buttonSelector(row, i)
			r.BookingName = btn.AttrOr("name", "")
		}
		rows = append(rows, r)
	})
	return rows
}

func (m *CourseMatcher) slotCells(row *goquery.Selection) (string, string, bool) {
	dayCell := row.Find(m.Selectors.Day).First()
	timeCell := row.Find(m.Selectors.Time).First()
	if dayCell.Length() == 0 || timeCell.Length() == 0 {
		return "", "", false
	}
	return strings.TrimSpace(dayCell.Text()), strings.TrimSpace(timeCell.Text()), true
}

// buttonSelector prefers the row id. The positional fallback breaks when
// the listing is re-sorted between the scan and the click.
func (m *CourseMatcher) buttonSelector(row *goquery.Selection, i int) string {
	if id := row.AttrOr("id", ""); id != "" {
		return fmt.Sprintf("#%s %s %s", id, m.Selectors.Action, m.Selectors.Book)
	}
	return fmt.Sprintf("%s:nth-child(%d) %s %s", m.Selectors.Rows, i+1, m.Selectors.Action, m.Selectors.Book)
}

// Match scans the rows of the listing in html in document order. Day and
// time have to be equal to the slot after trimming. The first matching row
// showing a waitlist or autostart indicator ends the scan unsuccessfully.
func (m *CourseMatcher) Match(ctx context.Context, html string, slot types.CourseSlot) types.CourseMatch {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "matcher"))
	notFound := types.CourseMatch{RowIndex: -1}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Error("failed to parse course listing", slog.String("err", err.Error()))
		return notFound
	}

	rows := doc.Find(m.Selectors.Rows)
	logger.Debug(fmt.Sprintf("found %d course rows", rows.Length()))
	result := notFound
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		day, time, ok := m.slotCells(row)
		if !ok {
			return true
		}
		logger.Debug(fmt.Sprintf("checking row %d", i+1), slog.String("day", day), slog.String("time", time))
		if day != slot.Day || time != slot.Time {
			return true
		}
		action := row.Find(m.Selectors.Action).First()
		if action.Length() == 0 {
			return true
		}
		if btn := action.Find(m.Selectors.Book).First(); btn.Length() > 0 {
			result = types.CourseMatch{
				Found:          true,
				ButtonSelector: m.buttonSelector(row, i),
				ButtonName:     btn.AttrOr("name", ""),
				RowIndex:       i,
			}
			logger.Info("found course", slog.String("selector", result.ButtonSelector), slog.String("name", result.ButtonName))
			return false
		}
		indicator := ""
		if action.Find(m.Selectors.Waitlist).Length() > 0 {
			indicator = "waitlist"
		}
		if action.Find(m.Selectors.Autostart).Length() > 0 {
			indicator = "autostart"
		}
		if indicator == "" {
			logger.Warn("course row matches but has no booking control", slog.Int("row", i+1))
			return true
		}
		logger.Warn(fmt.Sprintf("course row matches but shows %s instead of a booking control", indicator), slog.Int("row", i+1))
		result = types.CourseMatch{Indicator: indicator, RowIndex: i}
		return false
	})
	if !result.Found && result.Indicator == "" {
		logger.Warn("no course row matches", slog.String("slot", slot.String()))
	}
	return result
}
