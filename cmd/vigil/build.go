package main

import (
	"fmt"
	"os"
	"time"

	"vigil/alert"
	"vigil/config"
	"vigil/probe"
	"vigil/recovery"
	"vigil/registry"
)

// buildRegistry constructs the probe registry from configuration,
// preserving file order as execution and report order.
func buildRegistry(cfg config.Config) (*registry.Registry, error) {
	reg := registry.New()
	for _, pc := range cfg.Probes {
		p, err := buildProbe(pc)
		if err != nil {
			return nil, err
		}
		entry := registry.Entry{
			Prober:       p,
			Group:        pc.Group,
			Mandatory:    pc.IsMandatory(),
			Environments: pc.Environments,
		}
		if err := reg.Register(entry); err != nil {
			return nil, fmt.Errorf("probe %q: %w", pc.Name, err)
		}
	}
	return reg, nil
}

func buildProbe(pc config.ProbeConfig) (probe.Prober, error) {
	switch pc.Type {
	case "http":
		httpCfg := probe.HTTPConfig{
			Name:    pc.Name,
			URL:     pc.URL,
			Timeout: pc.Timeout(),
		}
		if pc.Expect != nil {
			httpCfg.Expect = &probe.Expectation{
				Status:    pc.Expect.Status,
				JSONField: pc.Expect.JSONField,
				JSONValue: pc.Expect.JSONValue,
			}
		}
		if pc.Auth != nil {
			secret, ok := os.LookupEnv(pc.Auth.SecretEnv)
			if !ok {
				return nil, fmt.Errorf("probe %q: auth secret env %s is not set", pc.Name, pc.Auth.SecretEnv)
			}
			httpCfg.Auth = &probe.BearerAuth{
				Secret:   []byte(secret),
				Issuer:   pc.Auth.Issuer,
				Audience: pc.Auth.Audience,
				TTL:      time.Duration(pc.Auth.TTLSeconds) * time.Second,
			}
		}
		return probe.NewHTTPProbe(httpCfg), nil

	case "tcp":
		return probe.NewTCPProbe(probe.TCPConfig{
			Name:    pc.Name,
			Address: pc.Address,
			Timeout: pc.Timeout(),
		}), nil

	case "exec":
		return probe.NewExecProbe(probe.ExecConfig{
			Name:    pc.Name,
			Command: pc.Command,
			Timeout: pc.Timeout(),
		}), nil

	case "postgres":
		return probe.NewPostgresProbe(probe.PostgresConfig{
			Name:    pc.Name,
			DSN:     pc.DSN,
			Timeout: pc.Timeout(),
		}), nil

	case "redis":
		return probe.NewRedisProbe(probe.RedisConfig{
			Name:    pc.Name,
			Address: pc.Address,
			Timeout: pc.Timeout(),
		}), nil

	default:
		return nil, fmt.Errorf("probe %q: unknown type %q", pc.Name, pc.Type)
	}
}

// buildPolicy constructs the alert policy with per-probe overrides.
func buildPolicy(cfg config.Config) *alert.Policy {
	policy := alert.NewPolicy(alert.Rule{
		Threshold:   cfg.Alert.Threshold,
		Suppression: time.Duration(cfg.Alert.SuppressMinutes) * time.Minute,
	})
	for _, pc := range cfg.Probes {
		if pc.Alert == nil {
			continue
		}
		policy.SetRule(pc.Name, alert.Rule{
			Threshold:   pc.Alert.Threshold,
			Suppression: time.Duration(pc.Alert.SuppressMinutes) * time.Minute,
		})
	}
	return policy
}

// buildRecovery constructs the recovery runner from configured actions.
// Returns nil when no probe has a remediation command.
func buildRecovery(cfg config.Config) *recovery.Runner {
	actions := make(map[string]recovery.Action)
	for _, pc := range cfg.Probes {
		if pc.Recover == nil {
			continue
		}
		threshold := pc.Recover.Threshold
		if threshold <= 0 {
			threshold = cfg.Recovery.Threshold
		}
		cooldownMin := pc.Recover.CooldownMinutes
		if cooldownMin <= 0 {
			cooldownMin = cfg.Recovery.CooldownMinutes
		}
		actions[pc.Name] = recovery.Action{
			Command:   pc.Recover.Command,
			Threshold: threshold,
			Cooldown:  time.Duration(cooldownMin) * time.Minute,
		}
	}
	if len(actions) == 0 {
		return nil
	}
	return recovery.NewRunner(actions)
}
