// Package config provides configuration management for authcore services.
package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the engine and its reference store.
type Config struct {
	PolicyPath        string
	DBURL             string
	MaxDepth          int
	MaxOperations     int
	EvalTimeout       time.Duration
	AllowedOperations []string
}

// Default returns configuration with conservative default values, matching
// the sandbox defaults.
func Default() *Config {
	return &Config{
		MaxDepth:      32,
		MaxOperations: 1000,
		EvalTimeout:   100 * time.Millisecond,
	}
}

// Validate checks budget positivity so a bad config cannot disable the
// sandbox by zeroing a limit.
func (c *Config) Validate() error {
	if c.MaxDepth <= 0 {
		return fmt.Errorf("engine.max_depth must be positive, got %d", c.MaxDepth)
	}
	if c.MaxOperations <= 0 {
		return fmt.Errorf("engine.max_operations must be positive, got %d", c.MaxOperations)
	}
	if c.EvalTimeout <= 0 {
		return fmt.Errorf("engine.eval_timeout must be positive, got %v", c.EvalTimeout)
	}
	return nil
}
