// Package config
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	PlatformAuto      = "auto"
	PlatformWindows   = "windows"
	PlatformSynthetic = "synthetic"
)

const (
	PassBaseline = "baseline"
	PassWGC      = "wgc"
	PassDDA      = "dda"
)

const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

type Config struct {
	TestDuration time.Duration `validate:"gte=500ms"`
	RestDuration time.Duration `validate:"gte=0"`
	MonitorIndex int           `validate:"gte=0"`
	DirtyRegions bool
	Verbose      bool

	TargetProcess string `validate:"required_without=TargetPID"`
	TargetPID     uint32

	Platform string   `validate:"oneof=auto windows synthetic"`
	Passes   []string `validate:"min=1,unique,dive,oneof=baseline wgc dda"`

	// PassesSet is false when Passes holds the default list.
	PassesSet bool

	ReportFormat string `validate:"oneof=text json yaml"`
	ReportWSURL  string `validate:"omitempty,url"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`

	SyntheticAdapters  int `validate:"gte=1,lte=16"`
	SyntheticRefreshHz int `validate:"gte=1,lte=480"`
}

var ErrInvalidConfig = errors.New("invalid configuration")

func DefaultPasses() []string {
	return []string{PassBaseline, PassWGC, PassDDA}
}

func Load() (*Config, error) {
	godotenv.Load()

	pid, err := pidEnv("TARGET_PID")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		TestDuration: durationEnv("TEST_DURATION", 5*time.Second),
		RestDuration: durationEnv("REST_DURATION", time.Second),
		MonitorIndex: intEnv("MONITOR_INDEX", 0),
		DirtyRegions: boolEnv("DIRTY_REGIONS", false),
		Verbose:      boolEnv("VERBOSE", false),

		TargetProcess: stringEnv("TARGET_PROCESS", "dwm.exe"),
		TargetPID:     pid,

		Platform:  strings.ToLower(stringEnv("PLATFORM", PlatformAuto)),
		Passes:    listEnv("PASSES", DefaultPasses()),
		PassesSet: os.Getenv("PASSES") != "",

		ReportFormat: strings.ToLower(stringEnv("REPORT_FORMAT", FormatText)),
		ReportWSURL:  os.Getenv("REPORT_WS_URL"),

		LogLevel:  strings.ToLower(stringEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(stringEnv("LOG_FORMAT", "text")),

		SyntheticAdapters:  intEnv("SYNTHETIC_ADAPTERS", 2),
		SyntheticRefreshHz: intEnv("SYNTHETIC_REFRESH_HZ", 60),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, messageFor(e))
	}

	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

func messageFor(e validator.FieldError) string {
	switch e.Tag() {
	case "gt", "gte", "min":
		return fmt.Sprintf("%s must be at least %s", e.Namespace(), e.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", e.Namespace(), e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", e.Namespace(), e.Param(), e.Value())
	case "unique":
		return fmt.Sprintf("%s must not repeat entries", e.Namespace())
	case "url":
		return fmt.Sprintf("%s must be a valid url", e.Namespace())
	case "required_without":
		return fmt.Sprintf("%s is required when %s is not set", e.Namespace(), e.Param())
	}

	return fmt.Sprintf("%s is invalid", e.Namespace())
}

func stringEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}

	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed
	}

	// bare numbers are milliseconds
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond
	}

	return def
}

func intEnv(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func pidEnv(key string) (uint32, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, nil
	}

	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a process id, got %q", ErrInvalidConfig, key, raw)
	}
	return uint32(v), nil
}

func boolEnv(key string, def bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}

	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return v
}

func listEnv(key string, def []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}

	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.ToLower(strings.TrimSpace(item))
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
