package booking

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/retry"
	"github.com/jakopako/kursbot/internal/types"
)

//go:embed js/forms.js
var formsScript string

// DiscoverForms describes all forms of the page. The live script sees the
// current field state; the HTML snapshot is used when the browser cannot
// evaluate scripts. It returns the forms and the name of the strategy that
// produced them.
func DiscoverForms(ctx context.Context, page browser.Page) ([]types.Form, string) {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "forms"))
	forms, name, ok := FirstOf(
		Strategy[[]types.Form]{Name: "script", Try: func() ([]types.Form, bool) {
			var forms []types.Form
			if err := page.Evaluate(ctx, formsScript, &forms); err != nil {
				logger.Debug("form script failed", slog.String("err", err.Error()))
				return nil, false
			}
			return forms, true
		}},
		Strategy[[]types.Form]{Name: "snapshot", Try: func() ([]types.Form, bool) {
			html, err := page.HTML(ctx)
			if err != nil {
				logger.Warn("failed to read page", slog.String("err", err.Error()))
				return nil, false
			}
			forms, err := ParseForms(html)
			if err != nil {
				logger.Warn("failed to parse page", slog.String("err", err.Error()))
				return nil, false
			}
			return forms, true
		}},
	)
	if !ok {
		return []types.Form{}, ""
	}
	total := 0
	for _, f := range forms {
		total += len(f.Fields)
		logger.Debug(fmt.Sprintf("form %s has %d fields", f.ID, len(f.Fields)))
	}
	logger.Info(fmt.Sprintf("found %d forms with %d fields", len(forms), total), slog.String("strategy", name))
	return forms, name
}

// ParseForms describes the forms of an HTML snapshot.
func ParseForms(html string) ([]types.Form, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	forms := []types.Form{}
	doc.Find("form").Each(func(fi int, form *goquery.Selection) {
		f := types.Form{
			Index:  fi,
			ID:     form.AttrOr("id", ""),
			Action: form.AttrOr("action", ""),
			Method: strings.ToLower(form.AttrOr("method", "")),
			Fields: []types.FormField{},
		}
		if f.ID == "" {
			f.ID = fmt.Sprintf("anonymous_form_%d", fi)
		}
		if f.Method == "" {
			f.Method = "get"
		}
		form.Find("input, select, textarea").Each(func(i int, el *goquery.Selection) {
			f.Fields = append(f.Fields, describeField(doc, el, i))
		})
		forms = append(forms, f)
	})
	return forms, nil
}

func describeField(doc *goquery.Document, el *goquery.Selection, i int) types.FormField {
	_, required := el.Attr("required")
	_, disabled := el.Attr("disabled")
	_, readOnly := el.Attr("readonly")
	f := types.FormField{
		Index:       i,
		Name:        el.AttrOr("name", ""),
		ID:          el.AttrOr("id", ""),
		ClassName:   el.AttrOr("class", ""),
		Required:    required,
		Disabled:    disabled,
		ReadOnly:    readOnly,
		Placeholder: el.AttrOr("placeholder", ""),
	}
	switch goquery.NodeName(el) {
	case "select":
		f.Type = "select-one"
		if _, ok := el.Attr("multiple"); ok {
			f.Type = "select-multiple"
		}
		f.Options = selectOptions(el, f.Type == "select-one")
		for _, o := range f.Options {
			if o.Selected {
				f.Value = o.Value
				break
			}
		}
	case "textarea":
		f.Type = "textarea"
		f.Value = el.Text()
	default:
		f.Type = strings.ToLower(el.AttrOr("type", "text"))
		f.Value = el.AttrOr("value", "")
	}
	f.Label = fieldLabel(doc, el)
	return f
}

func selectOptions(el *goquery.Selection, single bool) []types.FieldOption {
	options := []types.FieldOption{}
	last := -1
	el.Find("option").Each(func(i int, o *goquery.Selection) {
		_, selected := o.Attr("selected")
		if selected {
			last = i
		}
		text := strings.TrimSpace(o.Text())
		options = append(options, types.FieldOption{Value: o.AttrOr("value", text), Text: text, Selected: selected})
	})
	if !single || len(options) == 0 {
		return options
	}
	// a single select shows its last selected option, or its first one
	for i := range options {
		options[i].Selected = false
	}
	options[max(last, 0)].Selected = true
	return options
}

// fieldLabel resolves the human readable label of a field.
func fieldLabel(doc *goquery.Document, el *goquery.Selection) string {
	nonEmpty := func(s string) (string, bool) {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	label, _, _ := FirstOf(
		Strategy[string]{Name: "label-for", Try: func() (string, bool) {
			id := el.AttrOr("id", "")
			if id == "" {
				return "", false
			}
			l := doc.Find("label[for]").FilterFunction(func(_ int, l *goquery.Selection) bool {
				return l.AttrOr("for", "") == id
			}).First()
			return nonEmpty(l.Text())
		}},
		Strategy[string]{Name: "container", Try: func() (string, bool) {
			l := el.Closest("div, p, li").Find("label").First()
			if l.Length() == 0 || l.AttrOr("for", "") != "" {
				return "", false
			}
			return nonEmpty(l.Text())
		}},
		Strategy[string]{Name: "sibling", Try: func() (string, bool) {
			prev := el.Prev()
			switch goquery.NodeName(prev) {
			case "label", "span", "div":
				return nonEmpty(prev.Text())
			}
			return "", false
		}},
		Strategy[string]{Name: "placeholder", Try: func() (string, bool) {
			return nonEmpty(el.AttrOr("placeholder", ""))
		}},
	)
	return label
}

// WaitForField polls candidates in order until one of them is visible.
// Before every attempt but the first it waits up to idle for the network
// to settle. The wait result is ignored.
func WaitForField(ctx context.Context, page browser.Page, candidates []string, policy retry.Policy, idle time.Duration) (string, bool, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "forms"))
	var found string
	ok, err := retry.Poll(ctx, policy, func(ctx context.Context, attempt int) bool {
		logger.Debug(fmt.Sprintf("looking for field (attempt %d/%d)", attempt+1, max(policy.MaxAttempts, 1)))
		if attempt > 0 && idle > 0 {
			if err := page.WaitForLoad(ctx, browser.LoadNetworkIdle, idle); err != nil {
				logger.Debug("network did not settle", slog.String("err", err.Error()))
			}
		}
		for _, sel := range candidates {
			st, err := page.State(ctx, sel)
			if err == nil && st.Visible {
				found = sel
				return true
			}
		}
		return false
	})
	return found, ok, err
}
