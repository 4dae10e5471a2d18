package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/branchtale/internal/cli"
	"github.com/aretw0/branchtale/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "branchtale",
	Short: "Branchtale is an interactive branching story engine",
	Long: `Branchtale tells stories one choice at a time. Stories follow an authored
graph of nodes or are continued freely by a language model, and every reader's
progress is saved so it can be resumed later.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("store", "", "Progress store backend: memory, file, redis or sqlite")
	rootCmd.PersistentFlags().String("story", "", "Path to a story graph (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
}

// loadConfig reads the config file and environment, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, os.Environ())
	if err != nil {
		return config.Config{}, err
	}
	if cmd.Flags().Changed("store") {
		cfg.Store.Backend, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("story") {
		cfg.Story, _ = cmd.Flags().GetString("story")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
	return cfg, cfg.Validate()
}

// openApp builds the engine described by the flags and config.
func openApp(ctx context.Context, cmd *cobra.Command, opts cli.BuildOptions) (*cli.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return cli.NewApp(ctx, cfg, opts)
}
