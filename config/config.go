// Package config loads the vigil configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Known environments.
var validEnvironments = map[string]bool{
	"local":      true,
	"staging":    true,
	"production": true,
}

// Known probe types.
var validProbeTypes = map[string]bool{
	"http":     true,
	"tcp":      true,
	"exec":     true,
	"postgres": true,
	"redis":    true,
}

// Config is the top-level configuration.
type Config struct {
	// StatePath is where cross-invocation state is persisted.
	StatePath string `yaml:"state_path"`

	// BudgetSeconds is the overall wall-clock budget for one run.
	BudgetSeconds int `yaml:"budget_seconds"`

	// MaxConcurrent bounds the probe worker pool. Zero means one worker
	// per probe.
	MaxConcurrent int `yaml:"max_concurrent"`

	// FailOnWarn makes a WARN-only run exit nonzero.
	FailOnWarn bool `yaml:"fail_on_warn"`

	// IntervalMinutes is the watch-mode check interval.
	IntervalMinutes int `yaml:"interval_minutes"`

	// ListenAddr is the watch-mode HTTP listen address.
	ListenAddr string `yaml:"listen_addr"`

	// WebhookURL receives fired alerts. Empty disables delivery.
	WebhookURL string `yaml:"webhook_url"`

	Alert    AlertDefaults    `yaml:"alert"`
	Recovery RecoveryDefaults `yaml:"recovery"`
	Observe  ObserveConfig    `yaml:"observe"`
	Probes   []ProbeConfig    `yaml:"probes"`
}

// AlertDefaults configures the default alert rule.
type AlertDefaults struct {
	Threshold       int `yaml:"threshold"`
	SuppressMinutes int `yaml:"suppress_minutes"`
}

// RecoveryDefaults configures recovery behavior shared by all actions.
type RecoveryDefaults struct {
	Threshold       int `yaml:"threshold"`
	CooldownMinutes int `yaml:"cooldown_minutes"`
}

// ObserveConfig configures logging and telemetry.
type ObserveConfig struct {
	LogLevel        string  `yaml:"log_level"`
	MetricsExporter string  `yaml:"metrics_exporter"` // otlp|prometheus|stdout|none
	TracingExporter string  `yaml:"tracing_exporter"` // otlp|stdout|none
	SamplePct       float64 `yaml:"sample_pct"`
}

// ProbeConfig declares one probe.
type ProbeConfig struct {
	Name           string   `yaml:"name"`
	Type           string   `yaml:"type"` // http|tcp|exec|postgres|redis
	Group          string   `yaml:"group"`
	Mandatory      *bool    `yaml:"mandatory"` // default true
	Environments   []string `yaml:"environments"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`

	// Target fields; which one is required depends on Type.
	URL     string `yaml:"url"`     // http
	Address string `yaml:"address"` // tcp, redis
	Command string `yaml:"command"` // exec
	DSN     string `yaml:"dsn"`     // postgres

	Expect  *ExpectConfig  `yaml:"expect"`
	Auth    *AuthConfig    `yaml:"auth"`
	Alert   *AlertOverride `yaml:"alert"`
	Recover *RecoverConfig `yaml:"recover"`
}

// ExpectConfig is the optional HTTP response predicate.
type ExpectConfig struct {
	Status    int    `yaml:"status"`
	JSONField string `yaml:"json_field"`
	JSONValue string `yaml:"json_value"`
}

// AuthConfig configures bearer-token auth for HTTP probes. The signing
// secret is only ever referenced by environment variable name.
type AuthConfig struct {
	SecretEnv  string `yaml:"secret_env"`
	Issuer     string `yaml:"issuer"`
	Audience   string `yaml:"audience"`
	TTLSeconds int    `yaml:"ttl_seconds"`
}

// AlertOverride is a per-probe alert rule.
type AlertOverride struct {
	Threshold       int `yaml:"threshold"`
	SuppressMinutes int `yaml:"suppress_minutes"`
}

// RecoverConfig maps a probe to a remediation command.
type RecoverConfig struct {
	Command         string `yaml:"command"`
	Threshold       int    `yaml:"threshold"`
	CooldownMinutes int    `yaml:"cooldown_minutes"`
}

// IsMandatory reports the effective criticality; probes are mandatory
// unless configured otherwise.
func (p ProbeConfig) IsMandatory() bool {
	return p.Mandatory == nil || *p.Mandatory
}

// Timeout returns the effective per-probe timeout.
func (p ProbeConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// DefaultConfig returns sensible defaults for fields the file may omit.
func DefaultConfig() Config {
	return Config{
		StatePath:       "vigil-state.json",
		BudgetSeconds:   60,
		IntervalMinutes: 5,
		ListenAddr:      ":8787",
		Observe: ObserveConfig{
			LogLevel:  "info",
			SamplePct: 1.0,
		},
	}
}

// Load reads and validates the configuration file. Target strings support
// strict ${VAR} environment expansion so DSNs and URLs never carry
// credentials in the file itself.
func Load(path string) (Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	if c.BudgetSeconds <= 0 {
		c.BudgetSeconds = 60
	}
	if c.IntervalMinutes <= 0 {
		c.IntervalMinutes = 5
	}
	if c.StatePath == "" {
		c.StatePath = DefaultConfig().StatePath
	}
	if c.Observe.LogLevel == "" {
		c.Observe.LogLevel = "info"
	}

	if len(c.Probes) == 0 {
		return errors.New("configuration must define at least one probe")
	}

	var err error
	if c.WebhookURL, err = expandEnvStrict(c.WebhookURL); err != nil {
		return fmt.Errorf("webhook_url: %w", err)
	}

	seen := make(map[string]bool, len(c.Probes))
	for i := range c.Probes {
		if err := c.Probes[i].normalize(seen); err != nil {
			return err
		}
	}
	return nil
}

func (p *ProbeConfig) normalize(seen map[string]bool) error {
	if p.Name == "" {
		return errors.New("each probe must define a name")
	}
	if seen[p.Name] {
		return fmt.Errorf("probe %q: duplicate name", p.Name)
	}
	seen[p.Name] = true

	if !validProbeTypes[p.Type] {
		return fmt.Errorf("probe %q: unknown type %q", p.Name, p.Type)
	}
	for _, env := range p.Environments {
		if !validEnvironments[env] {
			return fmt.Errorf("probe %q: unknown environment %q", p.Name, env)
		}
	}

	var err error
	expand := func(label, value string) (string, error) {
		expanded, expErr := expandEnvStrict(value)
		if expErr != nil {
			return "", fmt.Errorf("probe %q: %s: %w", p.Name, label, expErr)
		}
		return expanded, nil
	}

	switch p.Type {
	case "http":
		if p.URL == "" {
			return fmt.Errorf("probe %q: http probes require url", p.Name)
		}
		if p.URL, err = expand("url", p.URL); err != nil {
			return err
		}
	case "tcp", "redis":
		if p.Address == "" {
			return fmt.Errorf("probe %q: %s probes require address", p.Name, p.Type)
		}
		if p.Address, err = expand("address", p.Address); err != nil {
			return err
		}
	case "exec":
		if p.Command == "" {
			return fmt.Errorf("probe %q: exec probes require command", p.Name)
		}
		if p.Command, err = expand("command", p.Command); err != nil {
			return err
		}
	case "postgres":
		if p.DSN == "" {
			return fmt.Errorf("probe %q: postgres probes require dsn", p.Name)
		}
		if p.DSN, err = expand("dsn", p.DSN); err != nil {
			return err
		}
	}

	if p.Auth != nil && p.Auth.SecretEnv == "" {
		return fmt.Errorf("probe %q: auth requires secret_env", p.Name)
	}
	if p.Recover != nil {
		if p.Recover.Command == "" {
			return fmt.Errorf("probe %q: recover requires command", p.Name)
		}
		if p.Recover.Command, err = expand("recover command", p.Recover.Command); err != nil {
			return err
		}
	}
	return nil
}

// ValidEnvironment reports whether env is a known deployment environment.
func ValidEnvironment(env string) bool {
	return validEnvironments[env]
}
