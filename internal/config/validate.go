package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the loaded config for usable values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", cfg.Log.Level)
	}

	if err := validateHTTPURL("reputation.vpn_list_url", cfg.Reputation.VpnListURL); err != nil {
		return err
	}
	if err := validateHTTPURL("reputation.lookup_url", strings.Replace(cfg.Reputation.LookupURL, "%s", "192.0.2.1", 1)); err != nil {
		return err
	}
	if strings.Count(cfg.Reputation.LookupURL, "%s") != 1 {
		return errors.New("reputation.lookup_url must contain exactly one %s placeholder")
	}

	if cfg.Remote.Port < 1 || cfg.Remote.Port > 65535 {
		return fmt.Errorf("remote.port out of range: %d", cfg.Remote.Port)
	}

	switch strings.ToLower(cfg.Filesystem.FaultPolicy) {
	case "abort", "skip":
	default:
		return fmt.Errorf("filesystem.fault_policy must be abort or skip, got %q", cfg.Filesystem.FaultPolicy)
	}
	if cfg.Filesystem.Timeout < 0 {
		return errors.New("filesystem.timeout must not be negative")
	}

	if err := validateTelemetryConfig(cfg.Telemetry); err != nil {
		return err
	}

	if cfg.Auth.BaseURL != "" {
		if err := validateHTTPURL("auth.base_url", cfg.Auth.BaseURL); err != nil {
			return err
		}
	}

	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) url, got %q", field, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", field)
	}
	return nil
}

func validateTelemetryConfig(t TelemetryConfig) error {
	if !t.Enabled {
		return nil
	}
	if strings.TrimSpace(t.Endpoint) == "" {
		return errors.New("telemetry enabled but endpoint is empty")
	}
	switch strings.ToLower(strings.TrimSpace(t.Protocol)) {
	case "grpc", "http":
	default:
		return fmt.Errorf("telemetry.protocol must be grpc or http, got %q", t.Protocol)
	}
	return nil
}
