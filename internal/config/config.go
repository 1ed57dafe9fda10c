package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/robfig/cron"

	"finanze/internal/core"
)

// DateLayout is the layout of BREAKDOWN_FROM and BREAKDOWN_TO.
const DateLayout = "2006-01-02"

// Env holds the settings read from the environment.
type Env struct {
	// Source
	SourceBackend       string `env:"SOURCE_BACKEND" envDefault:"sheets"`
	SourceDir           string `env:"SOURCE_DIR" envDefault:"./data/raw"`
	GoogleSpreadsheetID string `env:"GOOGLE_SPREADSHEET_ID"`
	AllowMissingSheets  bool   `env:"ALLOW_MISSING_SHEETS" envDefault:"false"`

	// Snapshot cache
	SQLiteDBPath    string `env:"SQLITE_DB_PATH" envDefault:"./data/finanze.db"`
	SnapshotEnabled bool   `env:"SNAPSHOT_ENABLED" envDefault:"true"`

	// Pipeline definition (YAML); empty uses built-in defaults
	PipelineConfigPath string `env:"PIPELINE_CONFIG"`

	// Output
	OutputDir       string `env:"OUTPUT_DIR" envDefault:"./data/processed"`
	OutputGCSBucket string `env:"OUTPUT_GCS_BUCKET"`
	OutputGCSPrefix string `env:"OUTPUT_GCS_PREFIX"`
	BreakdownFrom   string `env:"BREAKDOWN_FROM"`
	BreakdownTo     string `env:"BREAKDOWN_TO"`

	// AMQP notification; disabled when URL is empty
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"finanze"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"datasets_published"`

	// Runtime; an empty schedule runs once and exits
	RunSchedule string        `env:"RUN_SCHEDULE"`
	RunTimeout  time.Duration `env:"RUN_TIMEOUT" envDefault:"5m"`
	LogLevel    string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string        `env:"LOG_FORMAT" envDefault:"text"`
}

type Config struct {
	Env
	Pipeline Pipeline
}

// Load reads the environment and the pipeline definition.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(&cfg.Env); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	p, err := LoadPipeline(cfg.PipelineConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Pipeline = *p
	return cfg, nil
}

// BreakdownPeriod returns the inclusive period used for category breakdowns.
// Unset bounds are open.
func (c *Config) BreakdownPeriod() (core.Period, error) {
	var p core.Period
	if c.BreakdownFrom != "" {
		t, err := time.Parse(DateLayout, c.BreakdownFrom)
		if err != nil {
			return p, fmt.Errorf("invalid BREAKDOWN_FROM '%s': expected YYYY-MM-DD", c.BreakdownFrom)
		}
		p.Start = core.DateOf(t)
	}
	if c.BreakdownTo != "" {
		t, err := time.Parse(DateLayout, c.BreakdownTo)
		if err != nil {
			return p, fmt.Errorf("invalid BREAKDOWN_TO '%s': expected YYYY-MM-DD", c.BreakdownTo)
		}
		p.End = core.DateOf(t)
	}
	return p, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	validBackends := []string{"sheets", "memory", "sqlite"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.SourceBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errors = append(errors, fmt.Sprintf("invalid source backend '%s': must be one of %v", c.SourceBackend, validBackends))
	}

	switch c.SourceBackend {
	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
	case "memory":
		if c.SourceDir == "" {
			errors = append(errors, "source directory cannot be empty when using memory backend")
		} else if info, err := os.Stat(c.SourceDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("source directory does not exist: %s", c.SourceDir))
		}
	}

	if c.SourceBackend == "sqlite" || c.SnapshotEnabled {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when snapshots or the sqlite backend are used")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	if c.OutputDir == "" && c.OutputGCSBucket == "" {
		errors = append(errors, "either OUTPUT_DIR or OUTPUT_GCS_BUCKET must be provided")
	}
	if _, err := c.BreakdownPeriod(); err != nil {
		errors = append(errors, err.Error())
	} else if p, _ := c.BreakdownPeriod(); !p.Start.IsZero() && !p.End.IsZero() && p.End.Before(p.Start.Time) {
		errors = append(errors, "BREAKDOWN_TO must not be before BREAKDOWN_FROM")
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RunTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid run timeout %v: must be at least 1 second", c.RunTimeout))
	}

	if c.RunSchedule != "" {
		if _, err := cron.Parse(c.RunSchedule); err != nil {
			errors = append(errors, fmt.Sprintf("invalid run schedule '%s': %v", c.RunSchedule, err))
		}
	}

	errors = append(errors, c.Pipeline.problems()...)

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
