package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
	"saveup/internal/core"
	"saveup/internal/metrics"
)

var flagJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show progress, weekly pace and recent drops",
	RunE:  runStatus,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List every drop for the current goal",
	RunE:  runHistory,
}

func init() {
	statusCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the goal and summary as JSON")
	rootCmd.AddCommand(statusCmd, historyCmd)
}

func runStatus(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, app *cli.App) error {
		g := app.Tracker.Goal()
		s := metrics.Compute(g, app.Tracker.Now())
		if flagJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Goal    core.Goal       `json:"goal"`
				Summary metrics.Summary `json:"summary"`
			}{g, s})
		}
		fmt.Println()
		fmt.Print(cli.RenderStatus(g, s))
		fmt.Println()
		return nil
	})
}

func runHistory(_ *cobra.Command, _ []string) error {
	return withApp(func(_ context.Context, app *cli.App) error {
		g := app.Tracker.Goal()
		if !g.Active() {
			fmt.Println("\n  No savings goal yet.")
			return nil
		}
		fmt.Println()
		fmt.Print(cli.RenderHistory(g.Contributions))
		fmt.Println()
		return nil
	})
}
