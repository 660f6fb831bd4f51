package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raaihank/recipe-ai/internal/config"
	"github.com/raaihank/recipe-ai/internal/logger"
)

// app holds state shared by every subcommand
type app struct {
	cfgFile    string
	serviceURL string
	recipesURL string
	verbose    bool

	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "recipectl",
		Short: "Maintenance utilities for the recipe-ai service",
		Long: `recipectl imports recipe ingredients into a running recipe-ai service,
clears its collection and checks that search works.

Example usage:
  recipectl import                     # Import every recipe from the recipes API
  recipectl import --file recipes.csv  # Import prepared records from a file
  recipectl delete-all                 # Remove all stored ingredients
  recipectl status                     # Health check and sample searches`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./configs/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&a.serviceURL, "service-url", "", "recipe-ai base URL (overrides import.service_url)")
	rootCmd.PersistentFlags().StringVar(&a.recipesURL, "recipes-url", "", "recipes API base URL (overrides import.recipes_api_url)")
	rootCmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log progress details")

	rootCmd.AddCommand(newImportCmd(a), newDeleteAllCmd(a), newStatusCmd(a))
	return rootCmd
}

// Execute runs the root command; SIGINT or SIGTERM cancels the running operation
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func (a *app) setup() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.serviceURL != "" {
		cfg.Import.ServiceURL = a.serviceURL
	}
	if a.recipesURL != "" {
		cfg.Import.RecipesAPIURL = a.recipesURL
	}

	// Progress bars own the terminal; only warnings are logged unless asked.
	level := "warn"
	if a.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Format: "console"})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	a.cfg = cfg
	a.log = log.WithComponent("recipectl")
	return nil
}
