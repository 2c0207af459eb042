package booking

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/types"
	"github.com/jakopako/kursbot/internal/utils"
)

// DefaultButtonSelector matches the clickable controls of the booking
// dialog.
const DefaultButtonSelector = `input[type="submit"], button, a.button`

// Intent is what a control is expected to do.
type Intent string

const (
	IntentConfirm  Intent = "confirm"
	IntentSubmit   Intent = "submit"
	IntentContinue Intent = "continue"
)

// vocabulary holds the strong signals of an intent. Names are compared
// with the name attribute, phrases are searched case-sensitively in the
// caption.
type vocabulary struct {
	names   []string
	phrases []string
}

var intentVocabulary = map[Intent]vocabulary{
	IntentConfirm: {
		names:   []string{"buchen"},
		phrases: []string{"Buchen", "预订"},
	},
	IntentSubmit: {
		names:   []string{"absenden"},
		phrases: []string{"Absenden", "verbindlich buchen", "提交"},
	},
	IntentContinue: {
		names:   []string{"weiter"},
		phrases: []string{"Weiter", "weiter zur Buchung", "下一步"},
	},
}

// Weak signals shared by all intents. Captions are lower-cased before
// the comparison.
var (
	genericNames   = []string{"submit", "ok", "confirm", "next", "continue"}
	genericPhrases = []string{"提交", "确认", "下一步", "继续", "预订", "weiter", "bestätigen", "absenden"}
)

// AnalyzeButtons describes the controls of html matching selector in
// document order.
func AnalyzeButtons(ctx context.Context, html, selector string) []types.ButtonDescriptor {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "buttons"))
	buttons := []types.ButtonDescriptor{}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Error("failed to parse page", slog.String("err", err.Error()))
		return buttons
	}
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		b := types.ButtonDescriptor{
			Index:     i,
			Text:      strings.TrimSpace(s.Text()),
			Type:      s.AttrOr("type", ""),
			Name:      s.AttrOr("name", ""),
			ID:        s.AttrOr("id", ""),
			ClassName: s.AttrOr("class", ""),
			Value:     s.AttrOr("value", ""),
		}
		logger.Debug(fmt.Sprintf("button %d: %s", i+1, utils.ShortenString(utils.CollapseSpace(b.Caption()), 40)),
			slog.String("type", b.Type), slog.String("name", b.Name))
		buttons = append(buttons, b)
	})
	logger.Info(fmt.Sprintf("found %d buttons", len(buttons)))
	return buttons
}

// Classify picks the control for intent. Strong signals are tried on all
// buttons before weak ones. Within a tier the first button wins.
func Classify(buttons []types.ButtonDescriptor, intent Intent) (types.ButtonDescriptor, bool) {
	b, _, ok := FirstOf(
		Strategy[types.ButtonDescriptor]{Name: "vocabulary", Try: func() (types.ButtonDescriptor, bool) {
			return Strong(buttons, intent)
		}},
		Strategy[types.ButtonDescriptor]{Name: "generic", Try: func() (types.ButtonDescriptor, bool) {
			return firstButton(buttons, weak)
		}},
	)
	return b, ok
}

// Strong returns the first button carrying a strong signal of intent. The
// generic tier of Classify is skipped.
func Strong(buttons []types.ButtonDescriptor, intent Intent) (types.ButtonDescriptor, bool) {
	return firstButton(buttons, intentVocabulary[intent].strong)
}

func firstButton(buttons []types.ButtonDescriptor, pred func(types.ButtonDescriptor) bool) (types.ButtonDescriptor, bool) {
	for _, b := range buttons {
		if pred(b) {
			return b, true
		}
	}
	return types.ButtonDescriptor{}, false
}

func (v vocabulary) strong(b types.ButtonDescriptor) bool {
	if b.Name != "" && slices.Contains(v.names, b.Name) {
		return true
	}
	_, ok := utils.FirstContained(b.Caption(), v.phrases)
	return ok
}

func weak(b types.ButtonDescriptor) bool {
	if b.Type == "submit" {
		return true
	}
	if slices.Contains(genericNames, strings.ToLower(b.Name)) {
		return true
	}
	_, ok := utils.FirstContained(strings.ToLower(b.Caption()), genericPhrases)
	return ok
}

// SelectorFor rebuilds a selector for b. The positional fallback relies on
// Index and is only valid for the DOM b was taken from.
func SelectorFor(b types.ButtonDescriptor, base string) string {
	switch {
	case b.ID != "":
		return "#" + b.ID
	case b.Name != "":
		return fmt.Sprintf(`[name="%s"]`, b.Name)
	case strings.TrimSpace(b.ClassName) != "":
		return "." + strings.Join(strings.Fields(b.ClassName), ".")
	}
	parts := strings.Split(base, ",")
	for i, p := range parts {
		parts[i] = fmt.Sprintf("%s:nth-child(%d)", strings.TrimSpace(p), b.Index+1)
	}
	return strings.Join(parts, ", ")
}
