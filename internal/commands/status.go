package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dwsmith1983/stratum/internal/audit"
	"github.com/dwsmith1983/stratum/pkg/types"
)

const statusTimeout = 30 * time.Second

// NewStatusCmd creates the status command.
func NewStatusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show year progression and recent run history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum history entries to show")
	return cmd
}

func runStatus(limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()

	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	st, rec, cleanup, err := buildStack(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	history, err := rec.History(ctx)
	if err != nil {
		return fmt.Errorf("reading run history: %w", err)
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("Target year: %d\n", cfg.TargetYear)

	if staged, err := st.CountYear(ctx); err == nil {
		fmt.Printf("  Staged rows: %d\n", staged)
	}

	if audit.IsYearComplete(history) {
		color.Green("  All %d months complete", types.MonthsPerYear)
	} else {
		done := audit.CompletedUnits(history)
		next, _ := audit.NextUnit(history)
		fmt.Printf("  %d/%d months complete, next: %s\n",
			len(done), types.MonthsPerYear, types.MonthName(next))
	}
	fmt.Println()

	if len(history) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	_, _ = bold.Println("Recent runs:")
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	for _, r := range history {
		fmt.Printf("  %s  %-12s %-16s %-9s %10d rows  %6.1fs",
			r.RunTimestamp.UTC().Format("2006-01-02 15:04:05"),
			string(r.PipelineName), r.UnitLabel, statusString(r.Status),
			r.RowsLoaded, r.Runtime)
		if r.ErrorMessage != "" {
			fmt.Printf("  %s", color.RedString(r.ErrorMessage))
		}
		fmt.Println()
	}
	return nil
}

func statusString(s types.RunStatus) string {
	switch s {
	case types.StatusSuccess:
		return color.GreenString(string(s))
	case types.StatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}
