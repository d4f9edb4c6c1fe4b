// Package config loads the modscan YAML configuration.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultVpnListURL  = "https://raw.githubusercontent.com/X4BNet/lists_vpn/main/output/vpn/ipv4.txt"
	DefaultLookupURL   = "https://ipapi.co/%s/json/"
	DefaultRemotePort  = 5000
	DefaultListen      = ":5000"
	DefaultHistoryPath = "modscan-history"
)

type Config struct {
	Log        LogConfig        `yaml:"log"`
	Signatures SignaturesConfig `yaml:"signatures"`
	Reputation ReputationConfig `yaml:"reputation"`
	Whois      WhoisConfig      `yaml:"whois"`
	Remote     RemoteConfig     `yaml:"remote"`
	Filesystem FilesystemConfig `yaml:"filesystem"`
	History    HistoryConfig    `yaml:"history"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Auth       AuthConfig       `yaml:"auth"`
	UI         UIConfig         `yaml:"ui"`
}

type LogConfig struct {
	Level       string `yaml:"level"` // debug | info | warn | error
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
}

type SignaturesConfig struct {
	File string `yaml:"file"` // empty: built-in tables
}

type ReputationConfig struct {
	VpnListURL string        `yaml:"vpn_list_url"`
	LookupURL  string        `yaml:"lookup_url"` // %s is replaced by the address
	Timeout    time.Duration `yaml:"timeout"`
}

type WhoisConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type RemoteConfig struct {
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	Listen  string        `yaml:"listen"`
}

type FilesystemConfig struct {
	FaultPolicy string        `yaml:"fault_policy"` // abort | skip
	Timeout     time.Duration `yaml:"timeout"`      // 0: no limit
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"` // grpc | http
}

type AuthConfig struct {
	BaseURL string `yaml:"base_url"`
}

type UIConfig struct {
	Refresh time.Duration `yaml:"refresh"`
}

// Load reads configuration from a YAML file. A missing file yields the
// defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default is the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Reputation: ReputationConfig{
			VpnListURL: DefaultVpnListURL,
			LookupURL:  DefaultLookupURL,
			Timeout:    10 * time.Second,
		},
		Whois: WhoisConfig{Timeout: 10 * time.Second},
		Remote: RemoteConfig{
			Port:    DefaultRemotePort,
			Timeout: 5 * time.Second,
			Listen:  DefaultListen,
		},
		Filesystem: FilesystemConfig{FaultPolicy: "abort"},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath,
		},
		Telemetry: TelemetryConfig{Protocol: "grpc"},
		UI:        UIConfig{Refresh: time.Second},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()

	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Reputation.VpnListURL == "" {
		cfg.Reputation.VpnListURL = def.Reputation.VpnListURL
	}
	if cfg.Reputation.LookupURL == "" {
		cfg.Reputation.LookupURL = def.Reputation.LookupURL
	}
	if cfg.Reputation.Timeout <= 0 {
		cfg.Reputation.Timeout = def.Reputation.Timeout
	}
	if cfg.Whois.Timeout <= 0 {
		cfg.Whois.Timeout = def.Whois.Timeout
	}
	if cfg.Remote.Port == 0 {
		cfg.Remote.Port = def.Remote.Port
	}
	if cfg.Remote.Timeout <= 0 {
		cfg.Remote.Timeout = def.Remote.Timeout
	}
	if cfg.Remote.Listen == "" {
		cfg.Remote.Listen = def.Remote.Listen
	}
	if cfg.Filesystem.FaultPolicy == "" {
		cfg.Filesystem.FaultPolicy = def.Filesystem.FaultPolicy
	}
	if cfg.History.Path == "" {
		cfg.History.Path = def.History.Path
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = def.Telemetry.Protocol
	}
	if cfg.UI.Refresh <= 0 {
		cfg.UI.Refresh = def.UI.Refresh
	}
}
