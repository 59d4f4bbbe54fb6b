package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/stratum/internal/config"
)

const initTablesTimeout = 2 * time.Minute

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	var createTables bool

	cmd := &cobra.Command{
		Use:   "init [project-name]",
		Short: "Initialize a new stratum project",
		Long: "Creates project scaffolding with a starter " + config.FileName + `.
With --tables, instead creates the store and audit tables for the project in
the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if createTables {
				if len(args) > 0 {
					return fmt.Errorf("--tables uses the current directory's config; no project name expected")
				}
				return runInitTables()
			}
			if len(args) != 1 {
				return fmt.Errorf("project name required")
			}
			return runInit(args[0])
		},
	}

	cmd.Flags().BoolVar(&createTables, "tables", false,
		"Create store and audit tables from the current project config")
	return cmd
}

func runInit(projectName string) error {
	bold := color.New(color.Bold)
	_, _ = bold.Printf("Initializing stratum project: %s\n", projectName)

	if err := os.MkdirAll(projectName, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", projectName, err)
	}

	configPath := filepath.Join(projectName, config.FileName)
	configContent := `project: my-gcp-project
dataset: trips
targetYear: 2024
tables:
  staging: trips_staging
  validated: trips_validated
  cleaned: trips_cleaned
  aggregated: trips_daily
  audit: pipeline_runs
source:
  baseUrl: https://data.example.com/trips
  fileTemplate: trips_2024-%02d.csv.gz
  timeoutSeconds: 300
  batchSize: 50000
retry:
  maxAttempts: 3
  backoffSeconds: 1.0
  backoffMultiplier: 2.0
audit:
  provider: bigquery
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	color.Green("  ✓ Project scaffolded")
	fmt.Println()
	_, _ = bold.Println("Next steps:")
	fmt.Printf("  cd %s\n", projectName)
	fmt.Printf("  edit %s with your project and source details\n", config.FileName)
	fmt.Println("  stratum init --tables")
	fmt.Println("  stratum full-refresh")
	return nil
}

func runInitTables() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, cancel := context.WithTimeout(context.Background(), initTablesTimeout)
	defer cancel()

	st, rec, cleanup, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := st.EnsureTables(ctx); err != nil {
		return fmt.Errorf("creating store tables: %w", err)
	}
	color.Green("  ✓ Store tables ready")

	if err := rec.Ensure(ctx); err != nil {
		return fmt.Errorf("creating audit storage: %w", err)
	}
	color.Green("  ✓ Audit storage ready")
	return nil
}
