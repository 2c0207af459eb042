package booking

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/agnivade/levenshtein"
	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/retry"
	"github.com/jakopako/kursbot/internal/types"
)

// maxOptionDistance is the largest edit distance at which a configured
// status still resolves to an option text.
const maxOptionDistance = 2

// FillSelectors address the fields of the registration form. Gender is a
// format string receiving the mapped gender value.
type FillSelectors struct {
	Gender    string   `yaml:"gender"`
	FirstName string   `yaml:"first_name"`
	LastName  string   `yaml:"last_name"`
	Address   string   `yaml:"address"`
	ZipCity   string   `yaml:"zip_city"`
	Status    string   `yaml:"status"`
	StudentID []string `yaml:"student_id"`
	Email     string   `yaml:"email"`
	Phone     string   `yaml:"phone"`
	Terms     string   `yaml:"terms"`
}

type FillOptions struct {
	Selectors FillSelectors     `yaml:"selectors"`
	Genders   map[string]string `yaml:"genders"`
	// ConditionalStatuses are the statuses that make the student id field
	// appear.
	ConditionalStatuses []string      `yaml:"conditional_statuses"`
	FieldTimeout        time.Duration `yaml:"field_timeout"`
	Settle              time.Duration `yaml:"settle"`
	Conditional         retry.Policy  `yaml:"conditional"`
	IdleWait            time.Duration `yaml:"idle_wait"`
}

func (o FillOptions) withDefaults() FillOptions {
	s := &o.Selectors
	def := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	def(&s.Gender, `input[name="sex"][value="%s"]`)
	def(&s.FirstName, "#BS_F1100")
	def(&s.LastName, "#BS_F1200")
	def(&s.Address, "#BS_F1300")
	def(&s.ZipCity, "#BS_F1400")
	def(&s.Status, "#BS_F1600")
	def(&s.Email, "#BS_F2000")
	def(&s.Phone, "#BS_F2100")
	def(&s.Terms, `input[name="tnbed"]`)
	if len(s.StudentID) == 0 {
		s.StudentID = []string{"#BS_F1610", "#BS_F4101", `[name="matric_nr"]`, `input[placeholder*="Matrikelnummer"]`, `input[name*="matric"]`}
	}
	if len(o.Genders) == 0 {
		o.Genders = map[string]string{"männlich": "M", "weiblich": "W"}
	}
	if len(o.ConditionalStatuses) == 0 {
		o.ConditionalStatuses = []string{"S-RWTH"}
	}
	if o.FieldTimeout == 0 {
		o.FieldTimeout = 30 * time.Second
	}
	if o.Settle == 0 {
		o.Settle = 500 * time.Millisecond
	}
	o.Conditional = o.Conditional.Or(retry.Policy{MaxAttempts: 5, Interval: 500 * time.Millisecond})
	if o.IdleWait == 0 {
		o.IdleWait = time.Second
	}
	return o
}

// FormFiller enters a user profile into the registration form.
type FormFiller struct {
	FillOptions
}

func NewFormFiller(o FillOptions) *FormFiller {
	return &FormFiller{FillOptions: o.withDefaults()}
}

// Fill populates the form field by field in a fixed order. Any failure of
// a fixed field aborts with ErrFillFailure. The student id field is only
// looked for when the status requires it and its absence is not an error.
// forms are the discovered forms of the page and are used to resolve the
// status option.
func (f *FormFiller) Fill(ctx context.Context, page browser.Page, profile types.UserProfile, forms []types.Form) error {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "filler"))
	ctx = log.ContextWithLogger(ctx, logger)
	s := f.Selectors

	if value, ok := f.Genders[profile.Gender]; ok {
		sel := fmt.Sprintf(s.Gender, value)
		if err := page.Click(ctx, sel); err != nil {
			return fmt.Errorf("%w: gender %s: %v", ErrFillFailure, sel, err)
		}
		logger.Info("selected gender", slog.String("value", value))
	} else {
		logger.Warn(fmt.Sprintf("unknown gender %q, skipping", profile.Gender))
	}

	for _, field := range []struct{ name, selector, value string }{
		{"first name", s.FirstName, profile.FirstName},
		{"last name", s.LastName, profile.LastName},
		{"address", s.Address, profile.Address},
		{"zip and city", s.ZipCity, profile.ZipCity},
	} {
		if err := f.fillField(ctx, page, field.name, field.selector, field.value); err != nil {
			return err
		}
	}

	status := ResolveOption(forms, s.Status, profile.Status)
	if status != profile.Status {
		logger.Info(fmt.Sprintf("status %q resolved to option %q", profile.Status, status))
	}
	if err := page.SelectOption(ctx, s.Status, status); err != nil {
		return fmt.Errorf("%w: status %s: %v", ErrFillFailure, s.Status, err)
	}
	logger.Info("selected status", slog.String("value", status))

	if slices.Contains(f.ConditionalStatuses, profile.Status) || slices.Contains(f.ConditionalStatuses, status) {
		if err := f.fillStudentID(ctx, page, profile.StudentID); err != nil {
			return err
		}
	}

	for _, field := range []struct{ name, selector, value string }{
		{"email", s.Email, profile.Email},
		{"phone", s.Phone, profile.Phone},
	} {
		if err := f.fillField(ctx, page, field.name, field.selector, field.value); err != nil {
			return err
		}
	}

	if profile.AcceptTerms {
		if err := page.Check(ctx, s.Terms); err != nil {
			return fmt.Errorf("%w: terms %s: %v", ErrFillFailure, s.Terms, err)
		}
		logger.Info("accepted terms and conditions")
	}
	logger.Info("form filled")
	return nil
}

func (f *FormFiller) fillField(ctx context.Context, page browser.Page, name, selector, value string) error {
	logger := log.LoggerFromContext(ctx)
	if err := page.WaitForSelector(ctx, selector, browser.ElementAttached, f.FieldTimeout); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrFillFailure, name, selector, err)
	}
	if err := page.Fill(ctx, selector, value); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrFillFailure, name, selector, err)
	}
	logger.Info("filled "+name, slog.String("selector", selector))
	logger.Debug("filled "+name, slog.String("value", value))
	return nil
}

// fillStudentID waits for the student id field rendered after the status
// selection.
func (f *FormFiller) fillStudentID(ctx context.Context, page browser.Page, studentID string) error {
	logger := log.LoggerFromContext(ctx)
	logger.Info("waiting for the student id field")
	if err := retry.Sleep(ctx, f.Settle); err != nil {
		return fmt.Errorf("%w: %v", ErrFillFailure, err)
	}
	sel, found, err := WaitForField(ctx, page, f.Selectors.StudentID, f.Conditional, f.IdleWait)
	if err != nil {
		return fmt.Errorf("%w: student id: %v", ErrFillFailure, err)
	}
	if !found {
		logger.Warn("no known student id field, looking for any new text input")
		sel, found = f.fallbackField(ctx, page)
	}
	if !found {
		logger.Warn("could not find the student id field, check the submitted form")
		return nil
	}
	return f.fillField(ctx, page, "student id", sel, studentID)
}

// fallbackField returns the first visible text input that is not one of
// the fixed fields.
func (f *FormFiller) fallbackField(ctx context.Context, page browser.Page) (string, bool) {
	html, err := page.HTML(ctx)
	if err != nil {
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	s := f.Selectors
	fixed := []string{}
	for _, sel := range []string{s.FirstName, s.LastName, s.Address, s.ZipCity, s.Email, s.Phone} {
		if id, ok := strings.CutPrefix(sel, "#"); ok {
			fixed = append(fixed, id)
		}
	}
	var found string
	doc.Find(`input[type="text"]`).EachWithBreak(func(_ int, in *goquery.Selection) bool {
		id, name := in.AttrOr("id", ""), in.AttrOr("name", "")
		if slices.Contains(fixed, id) {
			return true
		}
		var sel string
		switch {
		case id != "":
			sel = "#" + id
		case name != "":
			sel = fmt.Sprintf(`[name="%s"]`, name)
		default:
			return true
		}
		if st, err := page.State(ctx, sel); err != nil || !st.Visible {
			return true
		}
		log.LoggerFromContext(ctx).Info("possible student id field", slog.String("selector", sel))
		found = sel
		return false
	})
	return found, found != ""
}

// ResolveOption maps a configured value onto an option of the select
// addressed by selector: exact value, exact text, then the closest text
// within a small edit distance. Without a match the value is returned
// unchanged.
func ResolveOption(forms []types.Form, selector, value string) string {
	field, ok := fieldFor(forms, selector)
	if !ok || len(field.Options) == 0 {
		return value
	}
	resolved, _, ok := FirstOf(
		Strategy[string]{Name: "value", Try: func() (string, bool) {
			for _, o := range field.Options {
				if o.Value == value {
					return o.Value, true
				}
			}
			return "", false
		}},
		Strategy[string]{Name: "text", Try: func() (string, bool) {
			for _, o := range field.Options {
				if strings.TrimSpace(o.Text) == value {
					return o.Value, true
				}
			}
			return "", false
		}},
		Strategy[string]{Name: "closest text", Try: func() (string, bool) {
			best, bestDist := "", maxOptionDistance+1
			for _, o := range field.Options {
				if d := levenshtein.ComputeDistance(strings.TrimSpace(o.Text), value); d < bestDist {
					best, bestDist = o.Value, d
				}
			}
			return best, bestDist <= maxOptionDistance
		}},
	)
	if !ok {
		return value
	}
	return resolved
}

// fieldFor finds the discovered field addressed by an id or name selector.
func fieldFor(forms []types.Form, selector string) (types.FormField, bool) {
	id, byID := strings.CutPrefix(selector, "#")
	name := ""
	if !byID {
		if n, ok := strings.CutPrefix(selector, `[name="`); ok {
			name = strings.TrimSuffix(n, `"]`)
		}
	}
	for _, form := range forms {
		for _, field := range form.Fields {
			if (byID && field.ID == id) || (name != "" && field.Name == name) {
				return field, true
			}
		}
	}
	return types.FormField{}, false
}
