/*
kursbot books a course slot on a university sports booking site.

Have a look at the README.md for more information.
*/
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/jakopako/kursbot/internal/booking"
	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/config"
	"github.com/jakopako/kursbot/internal/date"
	"github.com/jakopako/kursbot/internal/diagnostics"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/output"
	"github.com/jakopako/kursbot/internal/schedule"
	"github.com/jakopako/kursbot/internal/types"
	"gopkg.in/yaml.v3"
)

var version = "dev"

type VersionFlag string

func (v VersionFlag) Decode(_ *kong.DecodeContext) error { return nil }
func (v VersionFlag) IsBool() bool                       { return true }
func (v VersionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	fmt.Println(vars["version"])
	app.Exit(0)
	return nil
}

type Globals struct {
	Version VersionFlag `short:"v" long:"version" help:"Print the version and exit."`
	Debug   bool        `short:"d" long:"debug" help:"Set log level to 'debug' and store snapshots of all intermediate pages."`
}

type cli struct {
	Globals

	Book    BookCmd    `cmd:"" help:"Book the configured course slot."`
	Inspect InspectCmd `cmd:"" help:"Print the course rows, forms and buttons found on the given page."`
	Check   CheckCmd   `cmd:"" help:"Validate the configuration and show when the course takes place next."`
}

// setup loads the configuration and the logger. The returned function
// closes the log file.
func setup(configPath string, g *Globals) (*config.Config, context.Context, func(), error) {
	c, err := config.NewConfig(configPath)
	if err != nil {
		slog.Error(fmt.Sprintf("%v", err))
		return nil, nil, nil, err
	}
	logger, closer, err := log.New(c.Log, g.Debug)
	if err != nil {
		return nil, nil, nil, err
	}
	slog.SetDefault(logger)
	return c, log.ContextWithLogger(context.Background(), logger), func() { closer.Close() }, nil
}

type BookCmd struct {
	Config string `short:"c" default:"./config.yml" help:"The location of the configuration file."`
	At     string `help:"Wait until the given clock time (HH:MM or HH:MM:SS) before starting. Overrides start_at."`
	Stdout bool   `short:"o" help:"If set to true the report will be written to stdout despite any other existing writer configuration."`
}

func (b *BookCmd) Run(g *Globals) error {
	c, ctx, done, err := setup(b.Config, g)
	if err != nil {
		return err
	}
	defer done()
	if err := c.Validate(ctx); err != nil {
		return err
	}

	if b.Stdout {
		c.Output.Type = output.STDOUT_WRITER_TYPE
	}
	writer, err := output.NewWriter(&c.Output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	startAt := c.StartAt
	if b.At != "" {
		startAt = b.At
	}
	if startAt != "" {
		if err := schedule.WaitUntil(ctx, startAt, time.Now()); err != nil {
			return fmt.Errorf("waiting for %s: %w", startAt, err)
		}
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithTimeout(ctx, c.RunTimeout)
	defer cancel()

	br, err := browser.New(runCtx, &c.Browser)
	if err != nil {
		return err
	}
	defer br.Close()

	var sink booking.DiagnosticSink
	if !c.Diagnostics.Disabled {
		fs := diagnostics.NewFileSink(c.Diagnostics, runID)
		log.LoggerFromContext(ctx).Info(fmt.Sprintf("writing diagnostic snapshots to %s", fs.Dir()))
		sink = fs
	}
	opts := c.Booking
	if g.Debug {
		opts.Checkpoints = true
	}
	report := booking.NewWorkflow(br, sink, opts, c.Browser.Timeout).Run(runCtx, booking.Job{
		RunID:   runID,
		URL:     c.TargetURL,
		Slot:    c.Course,
		Profile: c.User,
	})

	if err := writer.Write(report); err != nil {
		slog.Error(fmt.Sprintf("error while writing report: %v", err))
	}
	if report.Outcome.Failed() {
		return fmt.Errorf("booking failed: %s", report.Error)
	}
	return nil
}

type InspectCmd struct {
	URL     string        `arg:"" help:"The page to inspect."`
	Config  string        `short:"c" help:"Take the browser settings and selectors from this configuration file."`
	JSON    bool          `short:"j" long:"json" help:"Print the findings as json instead of tables."`
	Timeout time.Duration `short:"t" default:"30s" help:"Navigation timeout."`
}

type inspection struct {
	Rows    []types.CourseRow        `json:"rows"`
	Forms   []types.Form             `json:"forms"`
	Buttons []types.ButtonDescriptor `json:"buttons"`
}

func (i *InspectCmd) Run(g *Globals) error {
	var c *config.Config
	var ctx context.Context
	if i.Config != "" {
		var done func()
		var err error
		c, ctx, done, err = setup(i.Config, g)
		if err != nil {
			return err
		}
		defer done()
	} else {
		logger, _, err := log.New(log.Config{}, g.Debug)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)
		c = &config.Config{Browser: browser.Config{Type: "chrome"}}
		ctx = log.ContextWithLogger(context.Background(), logger)
	}

	br, err := browser.New(ctx, &c.Browser)
	if err != nil {
		return err
	}
	defer br.Close()
	page, err := br.NewPage(ctx)
	if err != nil {
		return err
	}
	if err := page.Navigate(ctx, i.URL); err != nil {
		return err
	}
	if err := page.WaitForLoad(ctx, browser.LoadNetworkIdle, i.Timeout); err != nil {
		slog.Warn(fmt.Sprintf("page did not settle: %v", err))
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return err
	}

	buttonSelector := c.Booking.ButtonSelector
	if buttonSelector == "" {
		buttonSelector = booking.DefaultButtonSelector
	}
	var res inspection
	res.Rows = booking.NewCourseMatcher(c.Booking.Listing).Rows(doc)
	res.Forms, _ = booking.DiscoverForms(ctx, page)
	res.Buttons = booking.AnalyzeButtons(ctx, html, buttonSelector)

	if i.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if len(res.Rows) > 0 {
		output.WriteCourseRows(os.Stdout, res.Rows)
	}
	output.WriteForms(os.Stdout, res.Forms)
	output.WriteButtons(os.Stdout, res.Buttons)
	return nil
}

type CheckCmd struct {
	Config string `short:"c" default:"./config.yml" help:"The location of the configuration file."`
	Print  bool   `short:"p" help:"Print the effective configuration including defaults and environment overrides. Personal data is masked."`
}

func (cc *CheckCmd) Run(g *Globals) error {
	c, ctx, done, err := setup(cc.Config, g)
	if err != nil {
		return err
	}
	defer done()
	if err := c.Validate(ctx); err != nil {
		return err
	}
	now := time.Now()
	if wd, lang, ok := date.ParseWeekday(c.Course.Day); ok {
		next := date.NextOccurrence(now, wd)
		fmt.Printf("next course: %s, %s\n", date.FormatDay(next, lang), c.Course.Time)
	} else {
		fmt.Printf("course: %s\n", c.Course)
	}
	if c.StartAt != "" {
		clock, err := schedule.ParseClock(c.StartAt)
		if err != nil {
			return err
		}
		if schedule.IsTimeToBook(now, clock) {
			fmt.Println("booking run: now")
		} else {
			fmt.Printf("next booking run: %s\n", schedule.NextAt(now, clock).Format(time.DateTime))
		}
	}
	if _, err := output.NewWriter(&c.Output); err != nil {
		return errors.Join(errors.New("invalid output configuration"), err)
	}
	if cc.Print {
		masked := *c
		masked.User = maskProfile(c.User)
		masked.Output.Password = mask(c.Output.Password)
		yamlData, err := yaml.Marshal(&masked)
		if err != nil {
			return fmt.Errorf("error while marshalling: %w", err)
		}
		fmt.Println(string(yamlData))
	}
	fmt.Println("configuration is valid")
	return nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}

func maskProfile(p types.UserProfile) types.UserProfile {
	p.Address = mask(p.Address)
	p.ZipCity = mask(p.ZipCity)
	p.StudentID = mask(p.StudentID)
	p.Email = mask(p.Email)
	p.Phone = mask(p.Phone)
	return p
}

func getVersion() string {
	buildInfo, ok := debug.ReadBuildInfo()
	if ok {
		if buildInfo.Main.Version != "" && buildInfo.Main.Version != "(devel)" {
			return buildInfo.Main.Version
		}
	}
	return version
}

func main() {
	cli := cli{
		Globals: Globals{
			Version: VersionFlag(getVersion()),
		},
	}

	ctx := kong.Parse(&cli,
		kong.Description("kursbot books a course slot on a university sports booking site."),
		kong.Vars{
			"version": string(cli.Version),
		})

	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
