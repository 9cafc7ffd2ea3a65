// Package main implements the rulesight CLI: a deterministic static
// analyzer that infers a domain model from a TypeScript project, extracts
// business rules, and simulates the blast radius of changing any one of
// them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"rulesight/internal/config"
)

var (
	verbose    bool
	workspace  string
	configPath string

	logger *zap.Logger
	cfg    config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rulesight",
	Short: "Infer domain rules and simulate change impact over a TypeScript project",
	Long: `rulesight parses a TypeScript project, infers its domain entities,
extracts the business rules hiding in its conditionals and assignments, and
builds a typed dependency graph linking rules to the code that implements
them.

Given a rule identifier, it simulates the blast radius of changing that
rule: what else would need to move, and how risky the change is.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Project root (default: current directory)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".rulesight.yaml", "Path to the project config file")

	rootCmd.AddCommand(analyzeCmd, impactCmd, reachesCmd)
}

func resolveWorkspace(args []string, index int) string {
	if len(args) > index && args[index] != "" {
		return args[index]
	}
	if workspace != "" {
		return workspace
	}
	wd, _ := os.Getwd()
	return wd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
