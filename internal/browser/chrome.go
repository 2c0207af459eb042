package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/retry"
)

//go:embed js/helpers.js
var helpersJS string

// networkIdleQuiet is how long the resource count has to stay unchanged
// for a page to count as network idle.
const networkIdleQuiet = 500 * time.Millisecond

// ChromeBrowser drives a local Chrome through the DevTools protocol.
type ChromeBrowser struct {
	*Config
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	mu            sync.Mutex
	firstUsed     bool
	known         map[target.ID]bool
	subs          map[int]func(Page)
	nextSub       int
}

func NewChromeBrowser(ctx context.Context, cfg *Config) (*ChromeBrowser, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("browser", "chrome"))
	width, height := cfg.Width, cfg.Height
	if width == 0 || height == 0 {
		width, height = 1920, 1080
	}
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(width, height), // desktop layout, the booking buttons are missing on mobile
	)
	if cfg.ShowWindow {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	b := &ChromeBrowser{
		Config:        cfg,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		known:         map[target.ID]bool{},
		subs:          map[int]func(Page){},
	}
	if b.Timeout == 0 {
		b.Timeout = 30 * time.Second
	}

	// the first Run allocates the browser and binds it to browserCtx
	if err := chromedp.Run(browserCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}
	c := chromedp.FromContext(browserCtx)
	b.known[c.Target.TargetID] = true
	chromedp.ListenBrowser(browserCtx, b.onBrowserEvent)
	if err := target.SetDiscoverTargets(true).Do(cdp.WithExecutor(browserCtx, c.Browser)); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to enable target discovery: %w", err)
	}

	protocolVersion, product, _, userAgent, _, err := cdpbrowser.GetVersion().Do(cdp.WithExecutor(browserCtx, c.Browser))
	if err != nil {
		logger.Warn("failed to get chrome version", slog.String("err", err.Error()))
	} else {
		logger.Debug(fmt.Sprintf("chrome version: protocolVersion=%s, product=%s, userAgent=%s", protocolVersion, product, userAgent))
	}
	return b, nil
}

// onBrowserEvent turns page targets opened by a known page into pages.
// It runs on the event loop and must not block.
func (b *ChromeBrowser) onBrowserEvent(ev interface{}) {
	e, ok := ev.(*target.EventTargetCreated)
	if !ok || e.TargetInfo == nil || e.TargetInfo.Type != "page" {
		return
	}
	info := e.TargetInfo
	b.mu.Lock()
	if !b.known[info.OpenerID] || b.known[info.TargetID] {
		b.mu.Unlock()
		return
	}
	b.known[info.TargetID] = true
	fns := make([]func(Page), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(b.browserCtx, chromedp.WithTargetID(info.TargetID))
	p := &chromePage{ctx: tabCtx, cancel: cancel, timeout: b.Timeout}
	for _, fn := range fns {
		go fn(p)
	}
}

func (b *ChromeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	first := !b.firstUsed
	b.firstUsed = true
	b.mu.Unlock()
	if first {
		p := &chromePage{ctx: b.browserCtx, cancel: func() {}, timeout: b.Timeout}
		p.once.Do(func() {})
		return p, nil
	}

	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	p := &chromePage{ctx: tabCtx, cancel: cancel, timeout: b.Timeout}
	if err := p.attach(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open tab: %w", err)
	}
	b.mu.Lock()
	b.known[chromedp.FromContext(tabCtx).Target.TargetID] = true
	b.mu.Unlock()
	return p, nil
}

func (b *ChromeBrowser) OnNewPage(fn func(Page)) func() {
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

func (b *ChromeBrowser) Close() error {
	b.cancelBrowser()
	b.cancelAlloc()
	return nil
}

type chromePage struct {
	ctx       context.Context
	cancel    context.CancelFunc
	timeout   time.Duration
	once      sync.Once
	attachErr error
}

type loadStatus struct {
	ReadyState string `json:"readyState"`
	Resources  int    `json:"resources"`
}

type lookup struct {
	Found   bool   `json:"found"`
	Value   string `json:"value"`
	Present bool   `json:"present"`
}

type elementStatus struct {
	Exists  bool `json:"exists"`
	Visible bool `json:"visible"`
	Enabled bool `json:"enabled"`
}

// attach binds the tab to its target. The first Run on a chromedp context
// ties the target to that context, so it has to be the page context itself.
func (p *chromePage) attach() error {
	p.once.Do(func() {
		p.attachErr = chromedp.Run(p.ctx)
	})
	return p.attachErr
}

func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := p.attach(); err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(p.ctx, p.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// helper calls one of the functions of the embedded helper object.
func (p *chromePage) helper(ctx context.Context, res any, fn string, args ...any) error {
	enc, err := json.Marshal(args)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf("(%s).%s(...%s)", helpersJS, fn, enc)
	return p.run(ctx, chromedp.Evaluate(expr, res))
}

// action runs a helper that reports failures as a non-empty string.
func (p *chromePage) action(ctx context.Context, fn, selector string, args ...any) error {
	var msg string
	if err := p.helper(ctx, &msg, fn, append([]any{selector}, args...)...); err != nil {
		return fmt.Errorf("%s %s: %w", fn, selector, err)
	}
	if msg == "no element" {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	if msg != "" {
		return fmt.Errorf("%s %s: %s", fn, selector, msg)
	}
	return nil
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	log.LoggerFromContext(ctx).Debug("navigating", slog.String("browser", "chrome"), slog.String("url", url))
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromePage) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, chromedp.Location(&u))
	return u, err
}

func (p *chromePage) Title(ctx context.Context) (string, error) {
	var t string
	err := p.run(ctx, chromedp.Title(&t))
	return t, err
}

func (p *chromePage) HTML(ctx context.Context) (string, error) {
	var body string
	err := p.run(ctx, chromedp.OuterHTML("html", &body, chromedp.ByQuery))
	return body, err
}

func (p *chromePage) Text(ctx context.Context, selector string) (string, error) {
	var l lookup
	if err := p.helper(ctx, &l, "text", selector); err != nil {
		return "", err
	}
	if !l.Found {
		return "", fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return l.Value, nil
}

func (p *chromePage) Exists(ctx context.Context, selector string) (bool, error) {
	st, err := p.State(ctx, selector)
	return st.Exists, err
}

func (p *chromePage) Attribute(ctx context.Context, selector, name string) (string, bool, error) {
	var l lookup
	if err := p.helper(ctx, &l, "attr", selector, name); err != nil {
		return "", false, err
	}
	if !l.Found {
		return "", false, fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	return l.Value, l.Present, nil
}

func (p *chromePage) State(ctx context.Context, selector string) (ElementStatus, error) {
	var st elementStatus
	if err := p.helper(ctx, &st, "status", selector); err != nil {
		return ElementStatus{}, err
	}
	return ElementStatus(st), nil
}

// Click dispatches a real mouse click on visible elements. Hidden elements
// get a scripted click since chromedp would wait for them to become
// visible.
func (p *chromePage) Click(ctx context.Context, selector string) error {
	st, err := p.State(ctx, selector)
	if err != nil {
		return err
	}
	if !st.Exists {
		return fmt.Errorf("%w: %s", ErrNoElement, selector)
	}
	if !st.Visible {
		return p.action(ctx, "click", selector)
	}
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromePage) Fill(ctx context.Context, selector, value string) error {
	return p.action(ctx, "fill", selector, value)
}

func (p *chromePage) Check(ctx context.Context, selector string) error {
	return p.action(ctx, "check", selector)
}

func (p *chromePage) SelectOption(ctx context.Context, selector, value string) error {
	return p.action(ctx, "select", selector, value)
}

func (p *chromePage) WaitForSelector(ctx context.Context, selector string, state ElementState, timeout time.Duration) error {
	err := retry.Until(ctx, timeout, 100*time.Millisecond, func(ctx context.Context) bool {
		st, err := p.State(ctx, selector)
		if err != nil {
			return false
		}
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

// WaitForLoad polls the document state. Network idle means the document is
// complete and no new resource was requested for networkIdleQuiet.
func (p *chromePage) WaitForLoad(ctx context.Context, state LoadState, timeout time.Duration) error {
	lastCount := -1
	var stableSince time.Time
	err := retry.Until(ctx, timeout, 100*time.Millisecond, func(ctx context.Context) bool {
		var st loadStatus
		if err := p.helper(ctx, &st, "load"); err != nil {
			// the execution context is replaced while navigating
			return false
		}
		switch state {
		case LoadDOMContentLoaded:
			return st.ReadyState != "loading"
		case LoadComplete:
			return st.ReadyState == "complete"
		}
		if st.ReadyState != "complete" {
			lastCount = -1
			return false
		}
		if st.Resources != lastCount {
			lastCount = st.Resources
			stableSince = time.Now()
			return false
		}
		return time.Since(stableSince) >= networkIdleQuiet
	})
	if errors.Is(err, retry.ErrTimeout) {
		return fmt.Errorf("waiting for %s: %w", state, ErrTimeout)
	}
	return err
}

func (p *chromePage) ExpectNavigation(ctx context.Context, state LoadState) <-chan struct{} {
	done := make(chan struct{})
	if err := p.attach(); err != nil {
		return done
	}
	lctx, cancel := context.WithCancel(p.ctx)
	stop := context.AfterFunc(ctx, cancel)
	var once sync.Once
	chromedp.ListenTarget(lctx, func(ev interface{}) {
		e, ok := ev.(*page.EventFrameNavigated)
		if !ok || e.Frame == nil || e.Frame.ParentID != "" {
			return
		}
		once.Do(func() {
			go func() {
				defer cancel()
				defer stop()
				// the navigation happened, a slow load only delays the signal
				p.WaitForLoad(ctx, state, p.timeout)
				close(done)
			}()
		})
	})
	return done
}

func (p *chromePage) Evaluate(ctx context.Context, script string, res any) error {
	return p.run(ctx, chromedp.Evaluate(script, res, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithAwaitPromise(true)
	}))
}

func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

func (p *chromePage) Close() error {
	p.cancel()
	return nil
}
