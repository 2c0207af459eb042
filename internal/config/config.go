// Package config loads the kursbot configuration from a yaml file and the
// environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jakopako/kursbot/internal/booking"
	"github.com/jakopako/kursbot/internal/browser"
	"github.com/jakopako/kursbot/internal/date"
	"github.com/jakopako/kursbot/internal/diagnostics"
	"github.com/jakopako/kursbot/internal/log"
	"github.com/jakopako/kursbot/internal/output"
	"github.com/jakopako/kursbot/internal/schedule"
	"github.com/jakopako/kursbot/internal/types"
)

// Config defines the overall structure of the kursbot configuration.
// Values will be taken from a config yml file or environment variables
// or both.
type Config struct {
	TargetURL   string              `yaml:"target_url" env:"KURSBOT_TARGET_URL"`
	Course      types.CourseSlot    `yaml:"course"`
	User        types.UserProfile   `yaml:"user"`
	Browser     browser.Config      `yaml:"browser"`
	Booking     booking.Options     `yaml:"booking"`
	Diagnostics diagnostics.Config  `yaml:"diagnostics"`
	Output      output.WriterConfig `yaml:"output"`
	Log         log.Config          `yaml:"log"`
	// RunTimeout bounds a whole booking run.
	RunTimeout time.Duration `yaml:"run_timeout" env:"KURSBOT_RUN_TIMEOUT" env-default:"5m"`
	// StartAt delays the run until the given clock time (HH:MM[:SS]).
	StartAt string `yaml:"start_at" env:"KURSBOT_START_AT"`
}

func NewConfig(configPath string) (*Config, error) {
	var config Config
	if err := cleanenv.ReadConfig(configPath, &config); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", configPath, err)
	}
	return &config, nil
}

// Validate returns all problems that prevent a booking run. Problems that
// might be intended are only logged.
func (c *Config) Validate(ctx context.Context) error {
	logger := log.LoggerFromContext(ctx)
	var errs []error
	required := func(value, name string) {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s needs to be set", name))
		}
	}

	required(c.TargetURL, "target_url")
	if c.TargetURL != "" {
		if u, err := url.Parse(c.TargetURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("target_url %q is not an absolute url", c.TargetURL))
		}
	}
	required(c.Course.Day, "course.day")
	required(c.Course.Time, "course.time")
	required(c.User.FirstName, "user.first_name")
	required(c.User.LastName, "user.last_name")
	required(c.User.Email, "user.email")
	required(c.User.Status, "user.status")
	if c.StartAt != "" {
		if _, err := schedule.ParseClock(c.StartAt); err != nil {
			errs = append(errs, fmt.Errorf("start_at: %w", err))
		}
	}
	if c.RunTimeout < 0 {
		errs = append(errs, errors.New("run_timeout must not be negative"))
	}

	if c.Course.Day != "" {
		if _, _, ok := date.ParseWeekday(c.Course.Day); !ok {
			logger.Warn(fmt.Sprintf("course.day %q is not a known weekday name, it will be compared verbatim", c.Course.Day))
		}
	}
	if !c.User.AcceptTerms {
		logger.Warn("user.accept_terms is false, the booking site will probably reject the form")
	}
	return errors.Join(errs...)
}
