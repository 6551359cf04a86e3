package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidegate/authcore/internal/config"
	"github.com/tidegate/authcore/internal/expr"
	"github.com/tidegate/authcore/internal/policy"
	"github.com/tidegate/authcore/internal/policyfile"
)

var (
	configFile string
	policyPath string
	dbURL      string
)

var rootCmd = &cobra.Command{
	Use:   "authcore",
	Short: "Authcore policy engine for record-level access control",
	Long:  `Authcore evaluates declarative access policies against structured records, derives storage-level row filters, and applies field-level visibility rules.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "policy document path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "database connection URL (sqlite://path or postgres://...)")
}

func Execute() error {
	return rootCmd.Execute()
}

// loadEngine builds a policy engine from the config file and the policy
// document, with flag overrides applied.
func loadEngine() (*policy.Engine, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if policyPath != "" {
		cfg.PolicyPath = policyPath
	}
	if dbURL != "" {
		cfg.DBURL = dbURL
	}
	if cfg.PolicyPath == "" {
		return nil, nil, fmt.Errorf("no policy document (set --policy or policy.path)")
	}

	set, err := policyfile.Load(cfg.PolicyPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load policies: %w", err)
	}

	budget := expr.Budget{
		MaxDepth:          cfg.MaxDepth,
		MaxOperations:     cfg.MaxOperations,
		Timeout:           cfg.EvalTimeout,
		AllowedOperations: cfg.AllowedOperations,
	}
	return policy.NewEngine(set, nil, budget), cfg, nil
}
