package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/retry"
	"github.com/jakopako/kursbot/internal/utils"
)

type GateOptions struct {
	Selector          string        `yaml:"selector"`
	AttachTimeout     time.Duration `yaml:"attach_timeout"`
	Readiness         retry.Policy  `yaml:"readiness"`
	NavigationTimeout time.Duration `yaml:"navigation_timeout"`
	Settle            time.Duration `yaml:"settle"`
	Markers           []string      `yaml:"markers"`
}

func (o GateOptions) withDefaults() GateOptions {
	if o.Selector == "" {
		o.Selector = "#bs_submit"
	}
	if o.AttachTimeout == 0 {
		o.AttachTimeout = 10 * time.Second
	}
	o.Readiness = o.Readiness.Or(retry.Policy{MaxAttempts: 20, Interval: 500 * time.Millisecond})
	if o.NavigationTimeout == 0 {
		o.NavigationTimeout = 10 * time.Second
	}
	if o.Settle == 0 {
		o.Settle = 3 * time.Second
	}
	if len(o.Markers) == 0 {
		o.Markers = []string{"erfolgreich", "successful", "Anmeldung"}
	}
	return o
}

// SubmitResult describes a submission attempt. Confirmed is set when the
// resulting page shows one of the success markers.
type SubmitResult struct {
	Ready     bool
	Clicked   bool
	Navigated bool
	Confirmed bool
	Marker    string
	Err       error
}

// SubmissionGate clicks the submit control once it is ready, or anyway
// when it never gets ready.
type SubmissionGate struct {
	GateOptions
}

func NewSubmissionGate(o GateOptions) *SubmissionGate {
	return &SubmissionGate{GateOptions: o.withDefaults()}
}

func (g *SubmissionGate) Submit(ctx context.Context, page browser.Page) SubmitResult {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "gate"))
	var res SubmitResult

	selector := g.Selector
	if err := page.WaitForSelector(ctx, selector, browser.ElementAttached, g.AttachTimeout); err != nil {
		logger.Warn("submit control did not appear", slog.String("selector", selector), slog.String("err", err.Error()))
		if fallback, ok := g.fallbackControl(ctx, page); ok {
			logger.Info("using fallback submit control", slog.String("selector", fallback))
			selector = fallback
		}
	}

	ready, err := retry.Poll(ctx, g.Readiness, func(ctx context.Context, attempt int) bool {
		st, err := page.State(ctx, selector)
		if err != nil {
			return false
		}
		logger.Debug(fmt.Sprintf("waiting for submit control (attempt %d/%d)", attempt+1, g.Readiness.MaxAttempts),
			slog.Bool("visible", st.Visible), slog.Bool("enabled", st.Enabled))
		return st.Ready()
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.Ready = ready
	if res.Ready {
		logger.Info("submit control is ready")
	} else {
		logger.Warn("submit control may not be ready, clicking anyway")
	}

	navCtx, cancel := context.WithTimeout(ctx, g.NavigationTimeout)
	defer cancel()
	nav := page.ExpectNavigation(navCtx, browser.LoadDOMContentLoaded)
	if err := page.Click(ctx, selector); err != nil {
		logger.Error("failed to click submit control", slog.String("err", err.Error()))
		res.Err = fmt.Errorf("submit click: %w", err)
		return res
	}
	res.Clicked = true
	logger.Info("clicked submit control")

	settle := time.NewTimer(g.Settle)
	defer settle.Stop()
	select {
	case <-nav:
		res.Navigated = true
	case <-settle.C:
	case <-ctx.Done():
		res.Err = ctx.Err()
		return res
	}

	body, err := page.Text(ctx, "body")
	if err != nil {
		res.Err = fmt.Errorf("read page after submit: %w", err)
		return res
	}
	res.Marker, res.Confirmed = utils.FirstContained(body, g.Markers)
	if res.Confirmed {
		logger.Info("form submitted", slog.String("marker", res.Marker))
	} else {
		logger.Warn("form may not have been submitted, check the page response")
	}
	return res
}

// fallbackControl looks for a control labelled as a submission when the
// configured selector is missing from the page.
func (g *SubmissionGate) fallbackControl(ctx context.Context, page browser.Page) (string, bool) {
	html, err := page.HTML(ctx)
	if err != nil {
		return "", false
	}
	b, ok := Strong(AnalyzeButtons(ctx, html, DefaultButtonSelector), IntentSubmit)
	if !ok {
		return "", false
	}
	return SelectorFor(b, DefaultButtonSelector), true
}
