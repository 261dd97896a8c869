// Package config loads the orchestrator configuration from the
// environment. Out-of-range values are rejected at load time, never
// silently clamped.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mobiletriage/pkg/anomaly"
	"mobiletriage/pkg/history"
	"mobiletriage/pkg/monitor"
	"mobiletriage/pkg/risk"
)

// Config is the full tunable surface. Every field has a default.
type Config struct {
	HTTPAddr       string
	DataDir        string
	ADBPath        string
	CommandTimeout time.Duration

	MonitorInterval time.Duration
	ErrorBackoff    time.Duration
	AlertThreshold  int
	HistoryCapacity int

	Weights    risk.Weights
	Thresholds anomaly.Thresholds

	RedisAddr    string
	RedisChannel string
	AuthSecret   string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:        ":8090",
		DataDir:         "data",
		CommandTimeout:  15 * time.Second,
		MonitorInterval: monitor.DefaultInterval,
		ErrorBackoff:    monitor.DefaultErrorBackoff,
		AlertThreshold:  monitor.DefaultAlertThreshold,
		HistoryCapacity: history.DefaultCapacity,
		Weights:         risk.DefaultWeights(),
		Thresholds:      anomaly.DefaultThresholds(),
	}
}

// Load reads overrides from the environment on top of defaults and
// validates the result. A malformed override is an error, not a silent
// fallback to the default.
func Load() (Config, error) {
	c := Default()
	var l loader
	c.HTTPAddr = Get("TRIAGE_HTTP_ADDR", c.HTTPAddr)
	c.DataDir = Get("TRIAGE_DATA_DIR", c.DataDir)
	c.ADBPath = Get("TRIAGE_ADB_PATH", c.ADBPath)
	c.CommandTimeout = l.duration("TRIAGE_COMMAND_TIMEOUT", c.CommandTimeout)
	c.MonitorInterval = l.duration("TRIAGE_MONITOR_INTERVAL", c.MonitorInterval)
	c.ErrorBackoff = l.duration("TRIAGE_ERROR_BACKOFF", c.ErrorBackoff)
	c.AlertThreshold = l.integer("TRIAGE_ALERT_THRESHOLD", c.AlertThreshold)
	c.HistoryCapacity = l.integer("TRIAGE_HISTORY_CAPACITY", c.HistoryCapacity)
	c.RedisAddr = Get("TRIAGE_REDIS_ADDR", c.RedisAddr)
	c.RedisChannel = Get("TRIAGE_REDIS_CHANNEL", c.RedisChannel)
	c.AuthSecret = Get("TRIAGE_AUTH_SECRET", c.AuthSecret)

	c.Weights.Rooted = l.integer("TRIAGE_WEIGHT_ROOTED", c.Weights.Rooted)
	c.Weights.DeveloperOptions = l.integer("TRIAGE_WEIGHT_DEVOPTS", c.Weights.DeveloperOptions)
	c.Weights.PerSuspiciousApp = l.integer("TRIAGE_WEIGHT_SUSPICIOUS_APP", c.Weights.PerSuspiciousApp)
	c.Weights.HighMessageVolume = l.integer("TRIAGE_WEIGHT_MSG_VOLUME", c.Weights.HighMessageVolume)
	c.Weights.MessageVolumeThreshold = l.integer("TRIAGE_MSG_VOLUME_THRESHOLD", c.Weights.MessageVolumeThreshold)
	if kw := envCSV("TRIAGE_SUSPICIOUS_KEYWORDS"); kw != nil {
		c.Weights.SuspiciousKeywords = kw
	}

	c.Thresholds.AppCount = l.integer("TRIAGE_ANOMALY_APP_COUNT", c.Thresholds.AppCount)
	c.Thresholds.MessageVolume = l.integer("TRIAGE_ANOMALY_MSG_VOLUME", c.Thresholds.MessageVolume)
	c.Thresholds.AppCountConfidence = l.float("TRIAGE_CONF_APP_COUNT", c.Thresholds.AppCountConfidence)
	c.Thresholds.RootedConfidence = l.float("TRIAGE_CONF_ROOTED", c.Thresholds.RootedConfidence)
	c.Thresholds.MessageConfidence = l.float("TRIAGE_CONF_MSG_VOLUME", c.Thresholds.MessageConfidence)

	if err := errors.Join(l.errs...); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects out-of-range values.
func (c Config) Validate() error {
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("invalid config: monitor interval %s must be positive", c.MonitorInterval)
	}
	if c.ErrorBackoff <= 0 {
		return fmt.Errorf("invalid config: error backoff %s must be positive", c.ErrorBackoff)
	}
	if c.CommandTimeout <= 0 {
		return fmt.Errorf("invalid config: command timeout %s must be positive", c.CommandTimeout)
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("invalid config: history capacity %d must be at least 1", c.HistoryCapacity)
	}
	if c.AlertThreshold < 1 {
		return fmt.Errorf("invalid config: alert threshold %d must be at least 1", c.AlertThreshold)
	}
	for _, w := range []int{c.Weights.Rooted, c.Weights.DeveloperOptions, c.Weights.PerSuspiciousApp, c.Weights.HighMessageVolume} {
		if w < 0 {
			return fmt.Errorf("invalid config: scoring weight %d must not be negative", w)
		}
	}
	if c.Weights.MessageVolumeThreshold < 0 || c.Thresholds.AppCount < 0 || c.Thresholds.MessageVolume < 0 {
		return fmt.Errorf("invalid config: thresholds must not be negative")
	}
	if len(c.Weights.SuspiciousKeywords) == 0 {
		return fmt.Errorf("invalid config: suspicious keyword list must not be empty")
	}
	for _, conf := range []float64{c.Thresholds.AppCountConfidence, c.Thresholds.RootedConfidence, c.Thresholds.MessageConfidence} {
		if conf < 0 || conf > 1 {
			return fmt.Errorf("invalid config: confidence %g must be in [0,1]", conf)
		}
	}
	return nil
}

// Get returns an environment variable or the default value.
func Get(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// loader collects parse failures so Load can report every bad override
// at once instead of silently keeping the default.
type loader struct {
	errs []error
}

func (l *loader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s=%q is not an integer", key, v))
		return def
	}
	return n
}

func (l *loader) float(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("%s=%q is not a number", key, v))
		return def
	}
	return f
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// bare integers mean seconds
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	l.errs = append(l.errs, fmt.Errorf("%s=%q is not a duration", key, v))
	return def
}

func envCSV(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
