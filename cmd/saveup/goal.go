package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
	"saveup/internal/core"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Set or show the savings goal",
}

var goalSetCmd = &cobra.Command{
	Use:     "set <amount> <YYYY-MM-DD>",
	Short:   "Set the goal, or edit it keeping the logged drops",
	Example: "  saveup goal set 15000 2026-12-31",
	Args:    cobra.ExactArgs(2),
	RunE:    runGoalSet,
}

var goalShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the goal and progress",
	RunE:  runStatus,
}

func init() {
	goalCmd.AddCommand(goalSetCmd, goalShowCmd)
	rootCmd.AddCommand(goalCmd)
}

func runGoalSet(_ *cobra.Command, args []string) error {
	target, err := core.ParseAmount(args[0])
	if err != nil {
		return err
	}
	deadline, err := core.ParseDate(args[1])
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, app *cli.App) error {
		wasActive := app.Tracker.Goal().Active()
		if err := app.Tracker.SetOrEditGoal(ctx, target, deadline); err != nil {
			return err
		}
		if wasActive {
			fmt.Printf("\n  Goal updated: %s by %s\n\n", cli.Rupee(target), deadline)
		} else {
			fmt.Printf("\n  Goal set: %s by %s. Time to start dropping.\n\n", cli.Rupee(target), deadline)
		}
		return nil
	})
}
