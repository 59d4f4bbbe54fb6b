package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/stratum/internal/orchestrator"
	"github.com/dwsmith1983/stratum/pkg/types"
)

// NewFullRefreshCmd creates the full-refresh command.
func NewFullRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "full-refresh",
		Short: "Load every month of the target year, then rebuild downstream layers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(func(ctx context.Context, o *orchestrator.Orchestrator) error {
				return o.RunFullRefresh(ctx)
			})
		},
	}
}

// NewIncrementalCmd creates the incremental command.
func NewIncrementalCmd() *cobra.Command {
	var month int

	cmd := &cobra.Command{
		Use:   "incremental",
		Short: "Load the next incomplete month, then rebuild downstream layers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(func(ctx context.Context, o *orchestrator.Orchestrator) error {
				return o.RunIncremental(ctx, month)
			})
		},
	}

	cmd.Flags().IntVar(&month, "month", 0,
		"Explicit month to load (1-12), bypassing progression resolution")
	return cmd
}

func runPipeline(run func(context.Context, *orchestrator.Orchestrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	// Interrupt cancels between units; the in-flight unit finishes first.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, rec, cleanup, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := st.EnsureTables(ctx); err != nil {
		return fmt.Errorf("ensuring store tables: %w", err)
	}
	if err := rec.Ensure(ctx); err != nil {
		return fmt.Errorf("ensuring audit storage: %w", err)
	}

	orch := orchestrator.New(cfg, st, newSource(cfg, logger), rec, logger)
	if err := run(ctx, orch); err != nil {
		if errors.Is(err, orchestrator.ErrNothingToDo) {
			color.Yellow("Nothing to do: all %d months of %d are complete",
				types.MonthsPerYear, cfg.TargetYear)
			return err
		}
		color.Red("Pipeline failed (%s): %v", string(types.KindOf(err)), err)
		return err
	}

	color.Green("Pipeline completed successfully")
	return nil
}
