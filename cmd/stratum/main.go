package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/stratum/internal/commands"
	"github.com/dwsmith1983/stratum/internal/orchestrator"
)

var version = "dev"

const exitNothingToDo = 3

func main() {
	root := &cobra.Command{
		Use:   "stratum",
		Short: "Idempotent monthly ingestion into a layered analytical store",
		Long: `Stratum orchestrates monthly-partitioned ingestion into a layered
analytical store (staging, validated, cleaned, aggregated). Every attempt is
recorded in an append-only audit history; re-running a unit is always safe.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		commands.NewInitCmd(),
		commands.NewFullRefreshCmd(),
		commands.NewIncrementalCmd(),
		commands.NewStatusCmd(),
	)

	if err := root.Execute(); err != nil {
		if errors.Is(err, orchestrator.ErrNothingToDo) {
			os.Exit(exitNothingToDo)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
