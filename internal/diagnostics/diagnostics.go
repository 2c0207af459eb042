// Package diagnostics persists page snapshots taken during a booking run.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/types"
)

const timestampLayout = "20060102-150405.000"

type Config struct {
	Dir      string `yaml:"dir" env:"KURSBOT_DIAGNOSTICS_DIR" env-default:"./diagnostics"`
	Disabled bool   `yaml:"disabled"`
}

// FileSink writes snapshots to <dir>/<run id>/<label>_<timestamp>.html
// and .png. Errors are logged and otherwise ignored.
type FileSink struct {
	dir string
	now func() time.Time
}

func NewFileSink(cfg Config, runID string) *FileSink {
	dir := cfg.Dir
	if dir == "" {
		dir = "./diagnostics"
	}
	return &FileSink{
		dir: filepath.Join(dir, runID),
		now: time.Now,
	}
}

// Dir returns the directory of the run's snapshots.
func (s *FileSink) Dir() string {
	return s.dir
}

func (s *FileSink) Capture(ctx context.Context, page browser.Page, kind types.SnapshotKind, label string) {
	logger := log.LoggerFromContext(ctx).With(slog.String("component", "diagnostics"))
	if label == "" {
		label = "snapshot"
	}
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		logger.Error(fmt.Sprintf("failed to create directory %s: %v", s.dir, err))
		return
	}
	base := filepath.Join(s.dir, fmt.Sprintf("%s_%s", label, s.now().Format(timestampLayout)))

	if kind&types.SnapshotHTML != 0 {
		html, err := page.HTML(ctx)
		if err != nil {
			logger.Error(fmt.Sprintf("failed to read page html for %s: %v", label, err))
		} else if err := os.WriteFile(base+".html", []byte(html), 0644); err != nil {
			logger.Error(fmt.Sprintf("failed to write %s.html: %v", base, err))
		} else {
			logger.Info(fmt.Sprintf("saved page html to %s.html", base))
		}
	}

	if kind&types.SnapshotScreenshot != 0 {
		png, err := page.Screenshot(ctx)
		switch {
		case errors.Is(err, browser.ErrUnsupported):
			logger.Debug(fmt.Sprintf("skipping screenshot for %s: %v", label, err))
		case err != nil:
			logger.Error(fmt.Sprintf("failed to take screenshot for %s: %v", label, err))
		default:
			if err := os.WriteFile(base+".png", png, 0644); err != nil {
				logger.Error(fmt.Sprintf("failed to write %s.png: %v", base, err))
			} else {
				logger.Info(fmt.Sprintf("saved screenshot to %s.png", base))
			}
		}
	}
}
