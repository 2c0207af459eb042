// Package booking implements the course booking workflow and the
// heuristics it is built from.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/retry"
	"github.com/jakopako/kursbot/internal/types"
)

// DiagnosticSink persists page snapshots. Failures are handled by the
// sink itself.
type DiagnosticSink interface {
	Capture(ctx context.Context, page browser.Page, kind types.SnapshotKind, label string)
}

type nopSink struct{}

func (nopSink) Capture(context.Context, browser.Page, types.SnapshotKind, string) {}

// Options configures the workflow stages. Zero values are replaced by the
// defaults of the booking site.
type Options struct {
	Listing        ListingSelectors `yaml:"listing"`
	ListingWait    retry.Policy     `yaml:"listing_wait"`
	BookClick      retry.Policy     `yaml:"book_click"`
	ButtonSelector string           `yaml:"popup_buttons"`
	Fill           FillOptions      `yaml:"fill"`
	Submit         GateOptions      `yaml:"submit"`
	Final          FinalOptions     `yaml:"final"`
	// Checkpoints captures snapshots of the intermediate pages.
	Checkpoints bool `yaml:"checkpoints"`
}

func (o Options) withDefaults() Options {
	o.Listing = o.Listing.withDefaults()
	o.ListingWait = o.ListingWait.Or(retry.Policy{MaxAttempts: 10, Interval: 500 * time.Millisecond})
	o.BookClick = o.BookClick.Or(retry.Policy{MaxAttempts: 3, Interval: time.Second})
	if o.ButtonSelector == "" {
		o.ButtonSelector = DefaultButtonSelector
	}
	o.Fill = o.Fill.withDefaults()
	o.Submit = o.Submit.withDefaults()
	o.Final = o.Final.withDefaults()
	return o
}

// Job is one booking request.
type Job struct {
	RunID   string
	URL     string
	Slot    types.CourseSlot
	Profile types.UserProfile
}

// Workflow books a course slot. A Workflow may run several jobs one
// after another but every run builds its state from scratch.
type Workflow struct {
	browser    browser.Browser
	sink       DiagnosticSink
	opts       Options
	navTimeout time.Duration
	matcher    *CourseMatcher
	popups     *PopupResolver
	filler     *FormFiller
	gate       *SubmissionGate
	final      *FinalConfirmer
}

func NewWorkflow(b browser.Browser, sink DiagnosticSink, opts Options, navTimeout time.Duration) *Workflow {
	if sink == nil {
		sink = nopSink{}
	}
	if navTimeout == 0 {
		navTimeout = 30 * time.Second
	}
	opts = opts.withDefaults()
	return &Workflow{
		browser:    b,
		sink:       sink,
		opts:       opts,
		navTimeout: navTimeout,
		matcher:    NewCourseMatcher(opts.Listing),
		popups:     NewPopupResolver(navTimeout),
		filler:     NewFormFiller(opts.Fill),
		gate:       NewSubmissionGate(opts.Submit),
		final:      NewFinalConfirmer(opts.Final),
	}
}

// run carries the state of a single workflow run.
type run struct {
	logger *slog.Logger
	report *types.RunReport
}

func (r *run) advance(s types.State, note string) {
	r.report.State = s
	r.report.Trace = append(r.report.Trace, types.StageEvent{State: s, At: time.Now(), Note: note})
	r.logger.Info("workflow state changed", slog.String("state", string(s)))
}

// Run executes the booking stages in order. Stage failures end the run
// with a failure outcome and a diagnostic capture. Run never returns an
// error, the outcome is part of the report.
func (w *Workflow) Run(ctx context.Context, job Job) *types.RunReport {
	logger := log.LoggerFromContext(ctx).With(slog.String("run", job.RunID))
	ctx = log.ContextWithLogger(ctx, logger)
	r := &run{
		logger: logger,
		report: &types.RunReport{
			RunID:     job.RunID,
			TargetURL: job.URL,
			Slot:      job.Slot,
			Started:   time.Now(),
			Course:    types.CourseMatch{RowIndex: -1},
			Trace:     []types.StageEvent{},
		},
	}
	r.advance(types.StateStart, "")
	w.execute(ctx, r, job)
	r.report.Finished = time.Now()
	logger.Info("workflow finished", slog.String("outcome", string(r.report.Outcome)),
		slog.Duration("duration", r.report.Finished.Sub(r.report.Started)))
	return r.report
}

// fail ends the run with outcome and captures page.
func (w *Workflow) fail(ctx context.Context, r *run, page browser.Page, outcome types.Outcome, label string, err error) {
	stageErr := &StageError{State: r.report.State, Outcome: outcome, Err: err}
	r.logger.Error("workflow failed", slog.String("outcome", string(outcome)), slog.String("err", err.Error()))
	r.report.Outcome = outcome
	r.report.Error = stageErr.Error()
	r.advance(types.StateFailed, err.Error())
	if page != nil {
		w.sink.Capture(ctx, page, types.SnapshotAll, label)
	}
}

func (w *Workflow) checkpoint(ctx context.Context, page browser.Page, label string) {
	if w.opts.Checkpoints {
		w.sink.Capture(ctx, page, types.SnapshotAll, label)
	}
}

func (w *Workflow) execute(ctx context.Context, r *run, job Job) {
	logger := r.logger

	// navigate
	page, err := w.browser.NewPage(ctx)
	if err != nil {
		w.fail(ctx, r, nil, types.OutcomeCourseNotFound, "", fmt.Errorf("open page: %w", err))
		return
	}
	logger.Info("navigating to target site", slog.String("url", job.URL))
	if err := page.Navigate(ctx, job.URL); err != nil {
		w.fail(ctx, r, page, types.OutcomeCourseNotFound, "error_navigation", fmt.Errorf("navigate to %s: %w", job.URL, err))
		return
	}
	if err := page.WaitForLoad(ctx, browser.LoadDOMContentLoaded, w.navTimeout); err != nil {
		logger.Warn("page did not finish loading", slog.String("err", err.Error()))
	}
	if title, err := page.Title(ctx); err == nil {
		logger.Info("loaded target site", slog.String("title", title))
	}
	r.advance(types.StateNavigated, job.URL)

	// match course
	tableFound, err := retry.Poll(ctx, w.opts.ListingWait, func(ctx context.Context, _ int) bool {
		ok, err := page.Exists(ctx, w.opts.Listing.Table)
		return err == nil && ok
	})
	if err != nil || !tableFound {
		w.fail(ctx, r, page, types.OutcomeCourseNotFound, "error_not_found_table",
			errors.Join(fmt.Errorf("course table %s: %w", w.opts.Listing.Table, ErrNotFound), err))
		return
	}
	html, err := page.HTML(ctx)
	if err != nil {
		w.fail(ctx, r, page, types.OutcomeCourseNotFound, "error_target_not_found", fmt.Errorf("read course listing: %w", err))
		return
	}
	match := w.matcher.Match(ctx, html, job.Slot)
	r.report.Course = match
	if !match.Found {
		err := fmt.Errorf("course %s: %w", job.Slot, ErrNotFound)
		if match.Indicator != "" {
			err = fmt.Errorf("course %s shows %s: %w", job.Slot, match.Indicator, ErrNotFound)
		}
		w.fail(ctx, r, page, types.OutcomeCourseNotFound, "error_target_not_found", err)
		return
	}
	r.advance(types.StateCourseMatched, match.ButtonSelector)

	// book and resolve the popup
	pending := w.popups.Arm(w.browser)
	err = retry.Do(ctx, w.opts.BookClick, func(ctx context.Context) error {
		if err := page.WaitForSelector(ctx, match.ButtonSelector, browser.ElementAttached, w.navTimeout); err != nil {
			logger.Warn("booking control not attached, retrying", slog.String("err", err.Error()))
			return err
		}
		return page.Click(ctx, match.ButtonSelector)
	})
	if err != nil {
		logger.Error("failed to click booking control", slog.String("err", err.Error()))
		r.advance(types.StateBooked, "click failed")
	} else {
		r.advance(types.StateBooked, "clicked")
	}
	popup, err := pending.Wait(ctx)
	if err != nil {
		w.fail(ctx, r, page, types.OutcomePopupTimeout, "error_no_popup", err)
		return
	}
	w.checkpoint(ctx, popup, "popup_window")
	if title, err := popup.Title(ctx); err == nil {
		logger.Info("popup window opened", slog.String("title", title))
	}

	// confirm
	popupHTML, err := popup.HTML(ctx)
	if err != nil {
		w.fail(ctx, r, popup, types.OutcomeConfirmControlNotFound, "error_no_confirm_button", fmt.Errorf("read popup: %w", err))
		return
	}
	buttons := AnalyzeButtons(ctx, popupHTML, w.opts.ButtonSelector)
	confirm, ok := Classify(buttons, IntentConfirm)
	if !ok {
		w.fail(ctx, r, popup, types.OutcomeConfirmControlNotFound, "error_no_confirm_button",
			fmt.Errorf("confirm control among %d buttons: %w", len(buttons), ErrNotFound))
		return
	}
	confirmSelector := SelectorFor(confirm, w.opts.ButtonSelector)
	r.report.ConfirmControl = confirmSelector
	logger.Info("clicking confirm control", slog.String("selector", confirmSelector), slog.String("caption", confirm.Caption()))
	navCtx, cancelNav := context.WithTimeout(ctx, w.navTimeout)
	defer cancelNav()
	nav := popup.ExpectNavigation(navCtx, browser.LoadNetworkIdle)
	if err := popup.Click(ctx, confirmSelector); err != nil {
		w.fail(ctx, r, popup, types.OutcomeConfirmControlNotFound, "error_no_confirm_button", fmt.Errorf("click confirm control: %w", err))
		return
	}
	r.advance(types.StateConfirmClicked, confirmSelector)
	select {
	case <-nav:
	case <-navCtx.Done():
		logger.Warn("no navigation after the confirm click")
	}
	if title, err := popup.Title(ctx); err == nil {
		logger.Info("form page ready", slog.String("title", title))
	}
	r.advance(types.StateFormPageReady, "")

	// fill
	forms, strategy := DiscoverForms(ctx, popup)
	r.report.Forms = forms
	if err := w.filler.Fill(ctx, popup, job.Profile, forms); err != nil {
		w.fail(ctx, r, popup, types.OutcomeFormFillFailed, "error_form_fill", err)
		return
	}
	r.advance(types.StateFormFilled, "forms discovered by "+strategy)

	// submit
	w.checkpoint(ctx, popup, "before_submit")
	submit := w.gate.Submit(ctx, popup)
	w.checkpoint(ctx, popup, "after_submit")
	r.report.SubmitConfirmed = submit.Confirmed
	r.report.SubmitMarker = submit.Marker
	note := "confirmed"
	if !submit.Confirmed {
		note = "unconfirmed"
		logger.Warn("submission may have failed, continuing with the final confirmation")
		w.sink.Capture(ctx, popup, types.SnapshotScreenshot, "error_form_submit")
	}
	r.advance(types.StateSubmitted, note)

	// final confirmation
	w.checkpoint(ctx, popup, "final_confirmation_page")
	final, err := w.final.Confirm(ctx, popup)
	if final.Clicked {
		w.checkpoint(ctx, popup, "booking_complete")
		r.advance(types.StateFinalConfirmed, final.Control)
	}
	r.report.FinalMarker = final.Marker
	switch {
	case err == nil && final.Confirmed:
		r.report.Outcome = types.OutcomeSuccess
		logger.Info("booking completed")
		return
	case errors.Is(err, ErrNotFound) && !submit.Confirmed:
		r.report.Outcome = types.OutcomeSubmitUncertain
	default:
		r.report.Outcome = types.OutcomeFinalConfirmUncertain
	}
	if err == nil {
		err = errors.New("no confirmation marker on the result page")
	}
	r.report.Error = fmt.Errorf("%w: %v", ErrUncertain, err).Error()
	logger.Warn("booking may not have completed", slog.String("outcome", string(r.report.Outcome)))
	w.sink.Capture(ctx, popup, types.SnapshotScreenshot, "error_final_confirmation")
}
