// Package config loads and validates the engine configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the engine's startup configuration.
type Config struct {
	SampleRate uint32 `yaml:"sample_rate"`
	BlockSize  int    `yaml:"block_size"`

	Voices struct {
		MaxOneShot int `yaml:"max_one_shot"`
		MaxLooping int `yaml:"max_looping"`
	} `yaml:"voices"`

	CommandRingCapacity int `yaml:"command_ring_capacity"`

	Pdc struct {
		Enabled            bool   `yaml:"enabled"`
		ConstrainEnabled   bool   `yaml:"constrain_enabled"`
		ConstrainThreshold uint32 `yaml:"constrain_threshold"`
	} `yaml:"pdc"`

	Log struct {
		Level string `yaml:"level"`
		Path  string `yaml:"path"`
	} `yaml:"log"`
}

// Default returns the stock configuration.
func Default() Config {
	var c Config
	c.SampleRate = 48000
	c.BlockSize = 512
	c.Voices.MaxOneShot = 32
	c.Voices.MaxLooping = 16
	c.CommandRingCapacity = 256
	c.Pdc.Enabled = true
	c.Pdc.ConstrainThreshold = 512
	c.Log.Level = "info"
	return c
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	c := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks ranges; invalid values are errors, not clamps, so
// misconfiguration is visible at startup.
func (c *Config) Validate() error {
	switch {
	case c.SampleRate < 8000 || c.SampleRate > 384000:
		return fmt.Errorf("sample_rate %d out of range", c.SampleRate)
	case c.BlockSize < 64 || c.BlockSize > 4096:
		return fmt.Errorf("block_size %d out of range [64, 4096]", c.BlockSize)
	case c.Voices.MaxOneShot < 1:
		return fmt.Errorf("voices.max_one_shot must be positive")
	case c.CommandRingCapacity < 256:
		return fmt.Errorf("command_ring_capacity must be at least 256")
	case c.CommandRingCapacity&(c.CommandRingCapacity-1) != 0:
		return fmt.Errorf("command_ring_capacity must be a power of two")
	}
	return nil
}
