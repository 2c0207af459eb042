package browser

import (
	"context"
	"errors"
	"testing"
	"time"
)

const mockListing = `
<html>
<head><title>Kursliste</title></head>
<body>
<a id="book" href="#">buchen</a>
<a id="next" href="#">weiter</a>
<form>
  <input type="radio" name="sex" value="M">
  <input type="radio" name="sex" value="W" checked>
  <input type="checkbox" name="tnbed">
  <input type="text" id="name" value="">
  <input type="text" id="locked" disabled>
  <select id="status">
    <option value="">bitte wählen</option>
    <option value="S-RWTH">Student/in der RWTH</option>
    <option value="B-RWTH">Beschäftigte/r der RWTH</option>
  </select>
  <div id="matric-wrap" style="display: none; color: red"><input type="text" id="matric"></div>
  <input type="hidden" id="token" value="x">
  <span id="faded" style="opacity:0.0">x</span>
</form>
</body>
</html>`

const mockPopup = `<html><head><title>Buchung</title></head><body><p>popup</p></body></html>`

func newTestBrowser(t *testing.T, cfg MockConfig) (*MockBrowser, *MockPage) {
	t.Helper()
	cfg.Pages = append(cfg.Pages,
		MockDocument{URL: "https://example.com/list", Content: mockListing},
		MockDocument{URL: "https://example.com/popup", Content: mockPopup},
	)
	b, err := NewMockBrowser(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	p, _ := b.NewPage(context.Background())
	if err := p.Navigate(context.Background(), "https://example.com/list"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return b, p.(*MockPage)
}

func TestMockNavigateUnknownPage(t *testing.T) {
	b, _ := newTestBrowser(t, MockConfig{})
	p, _ := b.NewPage(context.Background())
	if err := p.Navigate(context.Background(), "https://example.com/missing"); err == nil {
		t.Fatal("expected an error for an unknown page")
	}
}

func TestMockVisibility(t *testing.T) {
	_, p := newTestBrowser(t, MockConfig{})
	ctx := context.Background()
	tests := []struct {
		selector string
		expected ElementStatus
	}{
		{"#name", ElementStatus{Exists: true, Visible: true, Enabled: true}},
		{"#locked", ElementStatus{Exists: true, Visible: true, Enabled: false}},
		{"#matric", ElementStatus{Exists: true, Visible: false, Enabled: true}},
		{"#token", ElementStatus{Exists: true, Visible: false, Enabled: true}},
		{"#faded", ElementStatus{Exists: true, Visible: false, Enabled: true}},
		{"#nope", ElementStatus{}},
	}
	for _, tt := range tests {
		st, err := p.State(ctx, tt.selector)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if st != tt.expected {
			t.Errorf("State(%s) = %+v; want %+v", tt.selector, st, tt.expected)
		}
	}
}

func TestMockFormInteraction(t *testing.T) {
	_, p := newTestBrowser(t, MockConfig{})
	ctx := context.Background()

	if err := p.Fill(ctx, "#name", "Erika"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := p.Value("#name"); v != "Erika" {
		t.Errorf("expected value Erika, got %q", v)
	}
	if err := p.Fill(ctx, "#locked", "x"); err == nil {
		t.Error("expected filling a disabled input to fail")
	}
	if err := p.Fill(ctx, "#missing", "x"); !errors.Is(err, ErrNoElement) {
		t.Errorf("expected ErrNoElement, got %v", err)
	}

	if err := p.Click(ctx, `input[name="sex"][value="M"]`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Checked(`input[name="sex"][value="M"]`) || p.Checked(`input[name="sex"][value="W"]`) {
		t.Error("expected the radio group to switch to M")
	}
	if err := p.Check(ctx, `input[name="tnbed"]`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.Checked(`input[name="tnbed"]`) {
		t.Error("expected checkbox to be checked")
	}

	if err := p.SelectOption(ctx, "#status", "Beschäftigte/r der RWTH"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v := p.Value("#status"); v != "B-RWTH" {
		t.Errorf("expected B-RWTH selected by text, got %q", v)
	}
	if err := p.SelectOption(ctx, "#status", "X"); err == nil {
		t.Error("expected an error for an unknown option")
	}
}

func TestMockRevealAfterSelect(t *testing.T) {
	_, p := newTestBrowser(t, MockConfig{
		Reveals: []MockReveal{
			{Select: "#status", Value: "S-RWTH", Target: "#matric-wrap", Show: true, Delay: 50 * time.Millisecond},
		},
	})
	ctx := context.Background()

	if err := p.SelectOption(ctx, "#status", "B-RWTH"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.WaitForSelector(ctx, "#matric", ElementVisible, 150*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected the field to stay hidden, got %v", err)
	}

	if err := p.SelectOption(ctx, "#status", "S-RWTH"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st, _ := p.State(ctx, "#matric"); st.Visible {
		t.Fatal("expected the field to be revealed only after the delay")
	}
	if err := p.WaitForSelector(ctx, "#matric", ElementVisible, time.Second); err != nil {
		t.Fatalf("expected the field to become visible, got %v", err)
	}
	style, _, _ := p.Attribute(ctx, "#matric-wrap", "style")
	if style != "color: red" {
		t.Errorf("expected unrelated style to be kept, got %q", style)
	}
}

func TestMockClickOpensPopup(t *testing.T) {
	b, p := newTestBrowser(t, MockConfig{
		Actions: []MockAction{{Page: "https://example.com/list", Selector: "#book", Popup: "https://example.com/popup"}},
	})
	ctx := context.Background()

	pages := make(chan Page, 1)
	stop := b.OnNewPage(func(np Page) { pages <- np })
	defer stop()

	if err := p.Click(ctx, "#book"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case np := <-pages:
		if title, _ := np.Title(ctx); title != "Buchung" {
			t.Errorf("expected popup title Buchung, got %q", title)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a popup")
	}
	if clicks := p.Clicks(); len(clicks) != 1 || clicks[0] != "#book" {
		t.Errorf("unexpected clicks %v", clicks)
	}
	stop()
	if n := b.Subscribers(); n != 0 {
		t.Errorf("expected no subscribers after stop, got %d", n)
	}
}

func TestMockExpectNavigation(t *testing.T) {
	_, p := newTestBrowser(t, MockConfig{
		Actions: []MockAction{{Selector: "#next", Navigate: "https://example.com/popup", Delay: 20 * time.Millisecond}},
	})
	ctx := context.Background()

	nav := p.ExpectNavigation(ctx, LoadDOMContentLoaded)
	if err := p.Click(ctx, "#next"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-nav:
	case <-time.After(time.Second):
		t.Fatal("expected a navigation")
	}
	if u, _ := p.URL(ctx); u != "https://example.com/popup" {
		t.Errorf("unexpected url %s", u)
	}
}

func TestMockUnsupported(t *testing.T) {
	_, p := newTestBrowser(t, MockConfig{})
	var res any
	if err := p.Evaluate(context.Background(), "1", &res); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	if _, err := p.Screenshot(context.Background()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestNewUnknownType(t *testing.T) {
	if _, err := New(context.Background(), &Config{Type: "firefox"}); err == nil {
		t.Fatal("expected an error for an unknown browser type")
	}
}
