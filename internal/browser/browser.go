// Package browser abstracts the page-level operations the booking workflow
// needs from a browser. Two backends exist: a chromedp driven Chrome and a
// goquery backed mock that serves configured documents.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnsupported is returned by backends that cannot perform an
	// operation, eg. script evaluation in the mock browser.
	ErrUnsupported = errors.New("operation not supported by browser")
	// ErrNoElement is returned when a selector matches nothing.
	ErrNoElement = errors.New("no element matches selector")
	// ErrTimeout is returned when a wait did not finish in time.
	ErrTimeout = errors.New("browser wait timed out")
)

// LoadState is a page readiness level.
type LoadState string

const (
	LoadDOMContentLoaded LoadState = "domcontentloaded"
	LoadComplete         LoadState = "load"
	LoadNetworkIdle      LoadState = "networkidle"
)

// ElementState is the condition WaitForSelector waits for.
type ElementState string

const (
	ElementAttached ElementState = "attached"
	ElementVisible  ElementState = "visible"
)

// ElementStatus is the state of the first element matching a selector.
type ElementStatus struct {
	Exists  bool
	Visible bool
	Enabled bool
}

// Ready reports whether the element can be interacted with.
func (s ElementStatus) Ready() bool {
	return s.Exists && s.Visible && s.Enabled
}

// A Page is a single browser tab. Selectors are CSS selectors and always
// address the first matching element.
type Page interface {
	Navigate(ctx context.Context, url string) error
	URL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Text(ctx context.Context, selector string) (string, error)
	Exists(ctx context.Context, selector string) (bool, error)
	Attribute(ctx context.Context, selector, name string) (string, bool, error)
	State(ctx context.Context, selector string) (ElementStatus, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Check(ctx context.Context, selector string) error
	SelectOption(ctx context.Context, selector, value string) error
	WaitForSelector(ctx context.Context, selector string, state ElementState, timeout time.Duration) error
	WaitForLoad(ctx context.Context, state LoadState, timeout time.Duration) error
	// ExpectNavigation returns a channel that is closed once the next main
	// frame navigation has reached state. It must be called before the
	// action that triggers the navigation.
	ExpectNavigation(ctx context.Context, state LoadState) <-chan struct{}
	// Evaluate runs a read-only script and decodes its result into res.
	Evaluate(ctx context.Context, script string, res any) error
	// Screenshot returns a full page PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// A Browser owns the pages of one run.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	// OnNewPage registers fn for every page opened by one of the browser's
	// pages (popups, target=_blank). fn must not block. The returned func
	// removes the registration.
	OnNewPage(fn func(Page)) (stop func())
	Close() error
}

// Config configures the browser backend.
type Config struct {
	Type string `yaml:"type" env:"KURSBOT_BROWSER" env-default:"chrome"`
	// ShowWindow runs chrome with a visible window instead of headless.
	ShowWindow bool          `yaml:"show_window" env:"KURSBOT_SHOW_WINDOW"`
	UserAgent  string        `yaml:"user_agent"`
	Width      int           `yaml:"width" env-default:"1920"`
	Height     int           `yaml:"height" env-default:"1080"`
	Timeout    time.Duration `yaml:"timeout" env-default:"30s"`
	Mock       MockConfig    `yaml:"mock"`
}

// New returns the backend selected by cfg.Type.
func New(ctx context.Context, cfg *Config) (Browser, error) {
	switch cfg.Type {
	case "", "chrome":
		return NewChromeBrowser(ctx, cfg)
	case "mock":
		return NewMockBrowser(cfg.Mock)
	default:
		return nil, fmt.Errorf("browser type %s does not exist", cfg.Type)
	}
}
