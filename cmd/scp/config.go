package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scpkg/scpload/loader"
)

// Config is the optional YAML configuration for the loader-backed
// commands. Every field has a sensible zero default, so a missing file
// is not an error unless the user named one explicitly.
type Config struct {
	LogLevel       string        `yaml:"log_level"`
	DrainPolicy    string        `yaml:"drain_policy"`
	DrainTimeout   time.Duration `yaml:"drain_timeout"`
	CallChecks     *bool         `yaml:"call_checks"`
	StrictReserved bool          `yaml:"strict_reserved"`
}

func loadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loaderOptions() []loader.Option {
	var opts []loader.Option
	if c.DrainTimeout > 0 {
		opts = append(opts, loader.WithDrainTimeout(c.DrainTimeout))
	}
	if c.DrainPolicy == "force" {
		opts = append(opts, loader.WithDrainPolicy(loader.DrainForceFree))
	}
	if c.CallChecks != nil {
		opts = append(opts, loader.WithCallChecks(*c.CallChecks))
	}
	if c.StrictReserved {
		opts = append(opts, loader.WithStrictReserved())
	}
	return opts
}
