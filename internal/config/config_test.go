package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jakopako/kursbot/internal/types"
)

const testConfig = `
target_url: https://buchsys.example/angebote/Volleyball.html
course:
  day: Mo
  time: 10:30-11:55
user:
  gender: weiblich
  first_name: Erika
  last_name: Mustermann
  status: S-RWTH
  email: erika@example.com
  accept_terms: true
browser:
  type: mock
  mock:
    pages:
      - url: https://buchsys.example/angebote/Volleyball.html
        content: <html></html>
    actions:
      - selector: .bs_btn_buchen
        popup: https://buchsys.example/cgi/anmeldung.fcgi
        delay: 20ms
booking:
  fill:
    conditional:
      max_attempts: 8
      interval: 250ms
  submit:
    markers: [erfolgreich]
output:
  type: file
  filedir: ./reports
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return path
}

func TestNewConfig(t *testing.T) {
	t.Setenv("KURSBOT_STUDENT_ID", "123456")
	c, err := NewConfig(writeConfig(t, testConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Course != (types.CourseSlot{Day: "Mo", Time: "10:30-11:55"}) {
		t.Errorf("unexpected course %+v", c.Course)
	}
	if c.User.StudentID != "123456" {
		t.Errorf("expected the student id from the environment, got %q", c.User.StudentID)
	}
	if c.RunTimeout != 5*time.Minute {
		t.Errorf("expected the default run timeout, got %v", c.RunTimeout)
	}
	if c.Browser.Type != "mock" || len(c.Browser.Mock.Actions) != 1 || c.Browser.Mock.Actions[0].Delay != 20*time.Millisecond {
		t.Errorf("unexpected browser config %+v", c.Browser)
	}
	if c.Browser.Width != 1920 || c.Browser.Timeout != 30*time.Second {
		t.Errorf("expected the browser defaults, got %+v", c.Browser)
	}
	if p := c.Booking.Fill.Conditional; p.MaxAttempts != 8 || p.Interval != 250*time.Millisecond {
		t.Errorf("unexpected conditional field policy %+v", p)
	}
	if c.Diagnostics.Dir != "./diagnostics" {
		t.Errorf("expected the default diagnostics dir, got %q", c.Diagnostics.Dir)
	}
	if c.Output.FileDir != "./reports" || c.Log.Level != "info" {
		t.Errorf("unexpected output %+v or log %+v", c.Output, c.Log)
	}
	if err := c.Validate(context.Background()); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	if _, err := NewConfig(filepath.Join(t.TempDir(), "nope.yml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	c := &Config{
		TargetURL: "buchsys.example/angebote",
		Course:    types.CourseSlot{Day: "Montag"},
		User:      types.UserProfile{FirstName: "Erika"},
		StartAt:   "7 Uhr",
	}
	err := c.Validate(context.Background())
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, s := range []string{"target_url", "course.time", "user.last_name", "user.email", "user.status", "start_at"} {
		if !strings.Contains(err.Error(), s) {
			t.Errorf("expected %q in %v", s, err)
		}
	}
	if strings.Contains(err.Error(), "course.day") {
		t.Errorf("expected the long weekday name to be accepted, got %v", err)
	}
}
