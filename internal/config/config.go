package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "/etc/phpeek-pm/phpeek-pm.yaml"

// Load reads the configuration file (explicit path, env var
// PHPEEK_PM_CONFIG, or the default path, in that order; when the default
// path does not exist, ./phpeek-pm.yaml is used), expands ${VAR} references,
// applies defaults, and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("PHPEEK_PM_CONFIG")
	}
	if path == "" {
		path = defaultConfigPath
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = "phpeek-pm.yaml"
		}
	}

	cfg := &Config{Groups: make(map[string]*Group)}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		expanded := ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if cfg.Groups == nil {
		cfg.Groups = make(map[string]*Group)
	}
	cfg.SetDefaults()

	if result := cfg.Validate(); result.HasErrors() {
		return nil, fmt.Errorf("invalid configuration %s: %s", path, result.Errors[0].Message)
	}

	return cfg, nil
}

// SetDefaults fills in zero-valued global settings with the supervisor's
// operating defaults (spec.md §4.E/§4.F/§6 constants).
func (c *Config) SetDefaults() {
	if c.Global.LogsPath == "" {
		c.Global.LogsPath = "/var/log/phpeek-pm"
	}
	if c.Global.LogLevel == "" {
		c.Global.LogLevel = "info"
	}
	if c.Global.LogFormat == "" {
		c.Global.LogFormat = "json"
	}
	if c.Global.TickIntervalMS <= 0 {
		c.Global.TickIntervalMS = 1500
	}
	if c.Global.MetricsPort == 0 {
		c.Global.MetricsPort = 9090
	}
	if c.Global.MetricsPath == "" {
		c.Global.MetricsPath = "/metrics"
	}
	if c.Global.APIPort == 0 {
		c.Global.APIPort = 8080
	}
	if c.Global.ZombieReapIntervalSec <= 0 {
		c.Global.ZombieReapIntervalSec = 1
	}

	for _, group := range c.Groups {
		for _, module := range group.Modules {
			for _, inst := range module.Instances {
				if inst.MaxRestartsPerMinute == 0 {
					inst.MaxRestartsPerMinute = 3
				}
			}
		}
	}
}
