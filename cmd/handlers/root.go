// Package handlers contains the coachly CLI commands.
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"coachly/internal/config"
	"coachly/internal/logger"
)

var (
	cfgFile   string
	globalCfg *config.Config
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "coachly",
		Short: "Personalized learning digest generator",
		Long: `Coachly turns ingested learning content into a personalized daily
digest: it builds a search query from your learning profile, retrieves
matching content chunks, synthesizes insights with an LLM, and gates the
result on quality metrics before delivering it.`,
		Version: "0.1.0",
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .coachly.yaml)")

	rootCmd.AddCommand(NewDigestCmd())
	rootCmd.AddCommand(NewSearchCmd())
	rootCmd.AddCommand(NewSuggestCmd())
	rootCmd.AddCommand(NewFeedbackCmd())
	rootCmd.AddCommand(NewServeCmd())

	return rootCmd
}

// Execute runs the CLI.
func Execute() {
	cobra.OnInitialize(initConfig)

	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
		return
	}
	globalCfg = cfg
	logger.Init(cfg.App.LogLevel)
}

// getConfig returns the loaded configuration, loading it on demand when the
// cobra initializer has not run (e.g. in tests).
func getConfig() (*config.Config, error) {
	if globalCfg != nil {
		return globalCfg, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	globalCfg = cfg
	return cfg, nil
}
