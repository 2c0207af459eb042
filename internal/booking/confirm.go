package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/utils"
)

type FinalOptions struct {
	Candidates        []string      `yaml:"candidates"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	VisibleTimeout    time.Duration `yaml:"visible_timeout"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	Markers           []string      `yaml:"markers"`
}

func (o FinalOptions) withDefaults() FinalOptions {
	if len(o.Candidates) == 0 {
		o.Candidates = []string{
			`input[type="submit"][value="verbindlich buchen"]`,
			`.sub[type="submit"]`,
			`input.sub[type="submit"]`,
			`input[type="submit"]`,
			`button[type="submit"]`,
		}
	}
	if o.IdleTimeout == 0 {
		o.IdleTimeout = 10 * time.Second
	}
	if o.VisibleTimeout == 0 {
		o.VisibleTimeout = 10 * time.Second
	}
	if o.NavigationTimeout == 0 {
		o.NavigationTimeout = 30 * time.Second
	}
	if len(o.Markers) == 0 {
		o.Markers = []string{"erfolgreich", "success", "bestätigt", "Buchungsbestätigung"}
	}
	return o
}

type FinalResult struct {
	Control   string
	Clicked   bool
	Navigated bool
	Confirmed bool
	Marker    string
}

// FinalConfirmer clicks the binding booking control of the confirmation
// page and checks the result page.
type FinalConfirmer struct {
	FinalOptions
}

func NewFinalConfirmer(o FinalOptions) *FinalConfirmer {
	return &FinalConfirmer{FinalOptions: o.withDefaults()}
}

// Confirm returns ErrNotFound when the page has no final control. Waits
// for the network are best effort.
func (c *FinalConfirmer) Confirm(ctx context.Context, page browser.Page) (FinalResult, error) {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "final"))
	var res FinalResult

	if err := page.WaitForLoad(ctx, browser.LoadNetworkIdle, c.IdleTimeout); err != nil {
		logger.Debug("network did not settle", slog.String("err", err.Error()))
	}

	control, name, ok := FirstOf(c.candidates(ctx, page)...)
	if !ok {
		logger.Error("no final booking control found")
		return res, fmt.Errorf("final booking control: %w", ErrNotFound)
	}
	res.Control = control
	logger.Info("found final booking control", slog.String("selector", name))

	if err := page.WaitForSelector(ctx, control, browser.ElementVisible, c.VisibleTimeout); err != nil {
		return res, fmt.Errorf("final booking control not visible: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, c.NavigationTimeout)
	defer cancel()
	nav := page.ExpectNavigation(navCtx, browser.LoadNetworkIdle)
	if err := page.Click(ctx, control); err != nil {
		return res, fmt.Errorf("final booking click: %w", err)
	}
	res.Clicked = true
	logger.Info("clicked final booking control")
	select {
	case <-nav:
		res.Navigated = true
	case <-navCtx.Done():
		logger.Warn("no navigation after the final booking click")
	}
	if err := page.WaitForLoad(ctx, browser.LoadNetworkIdle, c.IdleTimeout); err != nil {
		logger.Debug("network did not settle", slog.String("err", err.Error()))
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return res, fmt.Errorf("read result page: %w", err)
	}
	res.Marker, res.Confirmed = utils.FirstContained(html, c.Markers)
	if res.Confirmed {
		logger.Info("booking confirmed", slog.String("marker", res.Marker))
	} else {
		logger.Warn("booking finished but the result could not be confirmed")
	}
	return res, nil
}

func (c *FinalConfirmer) candidates(ctx context.Context, page browser.Page) []Strategy[string] {
	strategies := make([]Strategy[string], 0, len(c.Candidates))
	for _, sel := range c.Candidates {
		sel := sel
		strategies = append(strategies, Strategy[string]{Name: sel, Try: func() (string, bool) {
			ok, err := page.Exists(ctx, sel)
			return sel, err == nil && ok
		}})
	}
	return strategies
}
