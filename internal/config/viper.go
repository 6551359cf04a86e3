package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching Default()
	v.SetDefault("engine.max_depth", 32)
	v.SetDefault("engine.max_operations", 1000)
	v.SetDefault("engine.eval_timeout", "100ms")
	v.SetDefault("engine.allowed_operations", []string{})
	v.SetDefault("policy.path", "")
	v.SetDefault("store.db_url", "")

	// Bind environment variables with AUTHCORE_ prefix
	v.SetEnvPrefix("AUTHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		PolicyPath:        v.GetString("policy.path"),
		DBURL:             v.GetString("store.db_url"),
		MaxDepth:          v.GetInt("engine.max_depth"),
		MaxOperations:     v.GetInt("engine.max_operations"),
		EvalTimeout:       v.GetDuration("engine.eval_timeout"),
		AllowedOperations: v.GetStringSlice("engine.allowed_operations"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}
