package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/retry"
)

// MockDocument is a page served by the mock browser. Content takes
// precedence over File.
type MockDocument struct {
	URL     string `yaml:"url"`
	Content string `yaml:"content"`
	File    string `yaml:"file"`
}

// MockAction describes what happens when an element matching Selector is
// clicked on Page. Popup opens a new page, Navigate replaces the current
// document.
type MockAction struct {
	Page     string        `yaml:"page"`
	Selector string        `yaml:"selector"`
	Popup    string        `yaml:"popup"`
	Navigate string        `yaml:"navigate"`
	Delay    time.Duration `yaml:"delay"`
}

// MockReveal makes Target visible and/or enabled after Delay. With an empty
// Select it fires when Page is loaded, otherwise when Value is selected in
// the select matching Select.
type MockReveal struct {
	Page   string        `yaml:"page"`
	Select string        `yaml:"select"`
	Value  string        `yaml:"value"`
	Target string        `yaml:"target"`
	Show   bool          `yaml:"show"`
	Enable bool          `yaml:"enable"`
	Delay  time.Duration `yaml:"delay"`
}

var (
	_ Browser = (*MockBrowser)(nil)
	_ Page    = (*MockPage)(nil)
)

type MockConfig struct {
	Pages   []MockDocument `yaml:"pages"`
	Actions []MockAction   `yaml:"actions"`
	Reveals []MockReveal   `yaml:"reveals"`
}

// MockBrowser serves the configured documents and emulates the few
// dynamic behaviours a booking site shows. It does not enforce
// actionability: clicks on hidden or disabled elements succeed.
type MockBrowser struct {
	cfg     MockConfig
	docs    map[string]string
	mu      sync.Mutex
	pages   []*MockPage
	subs    map[int]func(Page)
	nextSub int
}

func NewMockBrowser(cfg MockConfig) (*MockBrowser, error) {
	b := &MockBrowser{
		cfg:  cfg,
		docs: map[string]string{},
		subs: map[int]func(Page){},
	}
	for _, d := range cfg.Pages {
		content := d.Content
		if content == "" && d.File != "" {
			bs, err := os.ReadFile(d.File)
			if err != nil {
				return nil, fmt.Errorf("failed to read mock page %s: %w", d.URL, err)
			}
			content = string(bs)
		}
		b.docs[d.URL] = content
	}
	return b, nil
}

func (b *MockBrowser) NewPage(ctx context.Context) (Page, error) {
	return b.newPage(), nil
}

func (b *MockBrowser) newPage() *MockPage {
	p := &MockPage{browser: b}
	b.mu.Lock()
	b.pages = append(b.pages, p)
	b.mu.Unlock()
	return p
}

// Pages returns all pages opened so far, popups included.
func (b *MockBrowser) Pages() []*MockPage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*MockPage(nil), b.pages...)
}

func (b *MockBrowser) OnNewPage(fn func(Page)) func() {
	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	b.subs[id] = fn
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Subscribers returns the number of registered new page callbacks.
func (b *MockBrowser) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *MockBrowser) notifyNewPage(p *MockPage) {
	b.mu.Lock()
	fns := make([]func(Page), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(p)
	}
}

func (b *MockBrowser) Close() error {
	for _, p := range b.Pages() {
		p.Close()
	}
	return nil
}

type navWaiter struct {
	ch   chan struct{}
	once sync.Once
	stop func() bool
}

func (w *navWaiter) fire() {
	w.once.Do(func() { close(w.ch) })
	w.stop()
}

// MockPage is a page of the MockBrowser.
type MockPage struct {
	browser *MockBrowser
	mu      sync.Mutex
	url     string
	gen     int
	doc     *goquery.Document
	clicks  []string
	waiters []*navWaiter
	timers  []*time.Timer
	closed  bool
}

func (p *MockPage) Navigate(ctx context.Context, url string) error {
	log.LoggerFromContext(ctx).Debug("navigating", slog.String("browser", "mock"), slog.String("url", url))
	return p.load(url)
}

func (p *MockPage) load(url string) error {
	content, ok := p.browser.docs[url]
	if !ok {
		return fmt.Errorf("page %s not found", url)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return err
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return errors.New("page is closed")
	}
	p.url = url
	p.gen++
	p.doc = doc
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, w := range waiters {
		w.fire()
	}
	p.scheduleReveals(nil)
	return nil
}

// scheduleReveals arms the reveals triggered by the current document load
// (sel == nil) or by a selection change in sel. The caller must not hold
// p.mu.
func (p *MockPage) scheduleReveals(sel *goquery.Selection) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.browser.cfg.Reveals {
		if r.Page != "" && r.Page != p.url {
			continue
		}
		if sel == nil {
			if r.Select != "" {
				continue
			}
		} else if r.Select == "" || !sel.Is(r.Select) || selectedValue(sel) != r.Value {
			continue
		}
		gen := p.gen
		r := r
		p.timers = append(p.timers, time.AfterFunc(r.Delay, func() { p.applyReveal(gen, r) }))
	}
}

func (p *MockPage) applyReveal(gen int, r MockReveal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.gen != gen {
		return
	}
	target := p.doc.Find(r.Target)
	if r.Show {
		target.RemoveAttr("hidden")
		target.Each(func(_ int, s *goquery.Selection) {
			if style, ok := s.Attr("style"); ok {
				s.SetAttr("style", showStyle(style))
			}
		})
	}
	if r.Enable {
		target.RemoveAttr("disabled")
	}
}

// first returns the first element matching selector. The caller must
// hold p.mu.
func (p *MockPage) first(selector string) (*goquery.Selection, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("%w: %s (no document loaded)", ErrNoElement, selector)
	}
	s := p.doc.Find(selector).First()
	if s.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return s, nil
}

func (p *MockPage) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, nil
}

func (p *MockPage) Title(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", nil
	}
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

func (p *MockPage) HTML(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return "", errors.New("no document loaded")
	}
	return p.doc.Html()
}

func (p *MockPage) Text(ctx context.Context, selector string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.first(selector)
	if err != nil {
		return "", err
	}
	return s.Text(), nil
}

func (p *MockPage) Exists(ctx context.Context, selector string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return false, nil
	}
	return p.doc.Find(selector).Length() > 0, nil
}

func (p *MockPage) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.first(selector)
	if err != nil {
		return "", false, err
	}
	v, ok := s.Attr(name)
	return v, ok, nil
}

func (p *MockPage) State(ctx context.Context, selector string) (ElementStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.first(selector)
	if err != nil {
		return ElementStatus{}, nil
	}
	_, disabled := s.Attr("disabled")
	return ElementStatus{Exists: true, Visible: visible(s), Enabled: !disabled}, nil
}

func (p *MockPage) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	s, err := p.first(selector)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	p.clicks = append(p.clicks, selector)
	if goquery.NodeName(s) == "input" {
		switch strings.ToLower(s.AttrOr("type", "")) {
		case "radio":
			p.checkRadio(s)
		case "checkbox":
			if _, ok := s.Attr("checked"); ok {
				s.RemoveAttr("checked")
			} else {
				s.SetAttr("checked", "checked")
			}
		}
	}
	var action *MockAction
	for i, a := range p.browser.cfg.Actions {
		if (a.Page == "" || a.Page == p.url) && s.Is(a.Selector) {
			action = &p.browser.cfg.Actions[i]
			break
		}
	}
	p.mu.Unlock()

	log.LoggerFromContext(ctx).Debug("clicked element", slog.String("browser", "mock"), slog.String("selector", selector))
	if action == nil {
		return nil
	}
	run := func() {
		if action.Popup != "" {
			np := p.browser.newPage()
			if err := np.load(action.Popup); err != nil {
				return
			}
			p.browser.notifyNewPage(np)
		}
		if action.Navigate != "" {
			p.load(action.Navigate)
		}
	}
	if action.Delay > 0 {
		p.mu.Lock()
		p.timers = append(p.timers, time.AfterFunc(action.Delay, run))
		p.mu.Unlock()
		return nil
	}
	run()
	return nil
}

// checkRadio checks s and unchecks the other radios of its group. The
// caller must hold p.mu.
func (p *MockPage) checkRadio(s *goquery.Selection) {
	if name, ok := s.Attr("name"); ok {
		p.doc.Find("input[type=radio]").Each(func(_ int, r *goquery.Selection) {
			if r.AttrOr("name", "") == name {
				r.RemoveAttr("checked")
			}
		})
	}
	s.SetAttr("checked", "checked")
}

func (p *MockPage) Fill(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.first(selector)
	if err != nil {
		return err
	}
	if _, disabled := s.Attr("disabled"); disabled {
		return fmt.Errorf("element %s is disabled", selector)
	}
	switch goquery.NodeName(s) {
	case "input":
		s.SetAttr("value", value)
	case "textarea":
		s.SetText(value)
	default:
		return fmt.Errorf("element %s is not an input or textarea", selector)
	}
	return nil
}

func (p *MockPage) Check(ctx context.Context, selector string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.first(selector)
	if err != nil {
		return err
	}
	switch strings.ToLower(s.AttrOr("type", "")) {
	case "radio":
		p.checkRadio(s)
	case "checkbox":
		s.SetAttr("checked", "checked")
	default:
		return fmt.Errorf("element %s is not a checkbox or radio button", selector)
	}
	return nil
}

func (p *MockPage) SelectOption(ctx context.Context, selector, value string) error {
	p.mu.Lock()
	s, err := p.first(selector)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	if goquery.NodeName(s) != "select" {
		p.mu.Unlock()
		return fmt.Errorf("element %s is not a select", selector)
	}
	options := s.Find("option")
	match := options.FilterFunction(func(_ int, o *goquery.Selection) bool {
		return optionValue(o) == value
	}).First()
	if match.Length() == 0 {
		match = options.FilterFunction(func(_ int, o *goquery.Selection) bool {
			return strings.TrimSpace(o.Text()) == value
		}).First()
	}
	if match.Length() == 0 {
		p.mu.Unlock()
		return fmt.Errorf("select %s has no option %q", selector, value)
	}
	options.RemoveAttr("selected")
	match.SetAttr("selected", "selected")
	p.mu.Unlock()

	p.scheduleReveals(s)
	return nil
}

func (p *MockPage) WaitForSelector(ctx context.Context, selector string, state ElementState, timeout time.Duration) error {
	err := retry.Until(ctx, timeout, 25*time.Millisecond, func(ctx context.Context) bool {
		st, _ := p.State(ctx, selector)
		if state == ElementVisible {
			return st.Visible
		}
		return st.Exists
	})
	if errors.Is(err, retry.ErrTimeout) {
		return fmt.Errorf("waiting for %s to be %s: %w", selector, state, ErrTimeout)
	}
	return err
}

// WaitForLoad returns immediately since mock documents load synchronously.
func (p *MockPage) WaitForLoad(ctx context.Context, state LoadState, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.doc == nil {
		return errors.New("no document loaded")
	}
	return ctx.Err()
}

func (p *MockPage) ExpectNavigation(ctx context.Context, state LoadState) <-chan struct{} {
	w := &navWaiter{ch: make(chan struct{})}
	w.stop = context.AfterFunc(ctx, func() { p.dropWaiter(w) })
	p.mu.Lock()
	p.waiters = append(p.waiters, w)
	p.mu.Unlock()
	return w.ch
}

func (p *MockPage) dropWaiter(w *navWaiter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, o := range p.waiters {
		if o == w {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}

func (p *MockPage) Evaluate(ctx context.Context, script string, res any) error {
	return ErrUnsupported
}

func (p *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	return nil, ErrUnsupported
}

func (p *MockPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	for _, t := range p.timers {
		t.Stop()
	}
	p.timers = nil
	return nil
}

// Closed reports whether Close was called on the page.
func (p *MockPage) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Clicks returns the selectors clicked on this page in order.
func (p *MockPage) Clicks() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

// Value returns the current value of an input, textarea or select.
func (p *MockPage) Value(selector string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.first(selector)
	if err != nil {
		return ""
	}
	switch goquery.NodeName(s) {
	case "textarea":
		return s.Text()
	case "select":
		return selectedValue(s)
	}
	return s.AttrOr("value", "")
}

// Checked reports whether the checkbox or radio button is checked.
func (p *MockPage) Checked(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, err := p.first(selector)
	if err != nil {
		return false
	}
	_, ok := s.Attr("checked")
	return ok
}

func optionValue(o *goquery.Selection) string {
	if v, ok := o.Attr("value"); ok {
		return v
	}
	return strings.TrimSpace(o.Text())
}

func selectedValue(sel *goquery.Selection) string {
	options := sel.Find("option")
	selected := options.Filter("[selected]").First()
	if selected.Length() == 0 {
		selected = options.First()
	}
	if selected.Length() == 0 {
		return ""
	}
	return optionValue(selected)
}

// visible checks the element and its ancestors for the hidden attribute
// and hiding inline styles.
func visible(s *goquery.Selection) bool {
	if goquery.NodeName(s) == "input" && strings.EqualFold(s.AttrOr("type", ""), "hidden") {
		return false
	}
	for n := s; n.Length() > 0; n = n.Parent() {
		if _, ok := n.Attr("hidden"); ok {
			return false
		}
		if styleHidden(n.AttrOr("style", "")) {
			return false
		}
	}
	return true
}

func styleHidden(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if hidingDecl(prop, val) {
			return true
		}
	}
	return false
}

func hidingDecl(prop, val string) bool {
	prop = strings.ToLower(strings.TrimSpace(prop))
	val = strings.ToLower(strings.TrimSpace(val))
	switch prop {
	case "display":
		return val == "none"
	case "visibility":
		return val == "hidden"
	case "opacity":
		f, err := strconv.ParseFloat(val, 64)
		return err == nil && f == 0
	}
	return false
}

// showStyle drops the declarations that hide an element.
func showStyle(style string) string {
	var kept []string
	for _, decl := range strings.Split(style, ";") {
		if strings.TrimSpace(decl) == "" {
			continue
		}
		prop, val, _ := strings.Cut(decl, ":")
		if !hidingDecl(prop, val) {
			kept = append(kept, strings.TrimSpace(decl))
		}
	}
	return strings.Join(kept, "; ")
}
