package booking

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/jakopako/kursbot/internal/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		buttons  []types.ButtonDescriptor
		intent   Intent
		expected int
		ok       bool
	}{
		{
			name: "vocabulary match",
			buttons: []types.ButtonDescriptor{
				{Index: 0, Text: "Abbrechen"},
				{Index: 1, Text: "Buchen", Name: "buchen"},
			},
			intent:   IntentConfirm,
			expected: 1,
			ok:       true,
		},
		{
			name:     "generic fallback",
			buttons:  []types.ButtonDescriptor{{Index: 0, Text: "Weiter", Type: "submit"}},
			intent:   IntentConfirm,
			expected: 0,
			ok:       true,
		},
		{
			name: "vocabulary beats earlier generic match",
			buttons: []types.ButtonDescriptor{
				{Index: 0, Text: "Weiter", Type: "submit"},
				{Index: 1, Value: "Buchen", Type: "button"},
			},
			intent:   IntentConfirm,
			expected: 1,
			ok:       true,
		},
		{
			name:     "phrases are case-sensitive in the first tier",
			buttons:  []types.ButtonDescriptor{{Index: 0, Text: "jetzt buchen"}, {Index: 1, Text: "ok", Name: "OK"}},
			intent:   IntentConfirm,
			expected: 1,
			ok:       true,
		},
		{
			name:     "lower-cased phrase in the second tier",
			buttons:  []types.ButtonDescriptor{{Index: 0, Text: "Abbrechen"}, {Index: 1, Text: "Bestätigen"}},
			intent:   IntentConfirm,
			expected: 1,
			ok:       true,
		},
		{
			name:     "continue vocabulary",
			buttons:  []types.ButtonDescriptor{{Index: 0, Text: "Zurück", Type: "submit"}, {Index: 1, Text: "Weiter"}},
			intent:   IntentContinue,
			expected: 1,
			ok:       true,
		},
		{
			name:    "nothing matches",
			buttons: []types.ButtonDescriptor{{Index: 0, Text: "Abbrechen", Type: "button"}},
			intent:  IntentConfirm,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, ok := Classify(tt.buttons, tt.intent)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && b.Index != tt.expected {
				t.Errorf("expected button %d, got %+v", tt.expected, b)
			}
		})
	}
}

func TestAnalyzeButtons(t *testing.T) {
	buttons := AnalyzeButtons(context.Background(), popupHTML, DefaultButtonSelector)
	if len(buttons) != 2 {
		t.Fatalf("expected 2 buttons, got %d", len(buttons))
	}
	expected := types.ButtonDescriptor{Index: 1, Type: "submit", Name: "buchen", Value: "Buchen"}
	if buttons[1] != expected {
		t.Errorf("got %+v; want %+v", buttons[1], expected)
	}
	b, ok := Classify(buttons, IntentConfirm)
	if !ok || b.Name != "buchen" {
		t.Errorf("expected the Buchen button, got %+v", b)
	}
}

func TestSelectorFor(t *testing.T) {
	tests := []struct {
		button   types.ButtonDescriptor
		expected string
	}{
		{types.ButtonDescriptor{ID: "go", Name: "buchen", ClassName: "sub"}, "#go"},
		{types.ButtonDescriptor{Name: "buchen", ClassName: "sub"}, `[name="buchen"]`},
		{types.ButtonDescriptor{ClassName: " sub  primary "}, ".sub.primary"},
		{types.ButtonDescriptor{Index: 2}, `input[type="submit"]:nth-child(3), button:nth-child(3), a.button:nth-child(3)`},
	}
	for _, tt := range tests {
		if got := SelectorFor(tt.button, DefaultButtonSelector); got != tt.expected {
			t.Errorf("SelectorFor(%+v) = %s; want %s", tt.button, got, tt.expected)
		}
	}
}

func TestSelectorForAddressesButton(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(popupHTML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, b := range AnalyzeButtons(context.Background(), popupHTML, DefaultButtonSelector) {
		sel := doc.Find(SelectorFor(b, DefaultButtonSelector))
		if sel.Length() != 1 || sel.AttrOr("value", "") != b.Value {
			t.Errorf("selector for %+v does not address it", b)
		}
	}
}
