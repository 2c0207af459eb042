package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/types"
)

func mockPage(t *testing.T) browser.Page {
	t.Helper()
	b, err := browser.NewMockBrowser(browser.MockConfig{
		Pages: []browser.MockDocument{{URL: "https://example.com", Content: "<html><head><title>Fehler</title></head><body></body></html>"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ := b.NewPage(context.Background())
	if err := p.Navigate(context.Background(), "https://example.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestCapture(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(Config{Dir: dir}, "run-1")
	s.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }

	if s.Dir() != filepath.Join(dir, "run-1") {
		t.Errorf("unexpected run directory %s", s.Dir())
	}
	s.Capture(context.Background(), mockPage(t), types.SnapshotAll, "error_no_popup")

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the html snapshot, got %d files", len(entries))
	}
	name := entries[0].Name()
	if name != "error_no_popup_20261018-120000.000.html" {
		t.Errorf("unexpected file name %s", name)
	}
	content, err := os.ReadFile(filepath.Join(dir, "run-1", name))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(content), "<title>Fehler</title>") {
		t.Errorf("unexpected snapshot content %s", content)
	}
}

func TestCaptureScreenshotOnly(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(Config{Dir: dir}, "run-2")
	s.Capture(context.Background(), mockPage(t), types.SnapshotScreenshot, "")

	entries, err := os.ReadDir(filepath.Join(dir, "run-2"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files for an unsupported screenshot, got %d", len(entries))
	}
}
