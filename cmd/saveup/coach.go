package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"saveup/internal/analysis"
	"saveup/internal/cli"
	"saveup/internal/core"
	"saveup/internal/log"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Ask the coach to review your saving pattern (needs 5 drops)",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runCoach("Analysis", log.OpAnalyze, func(app *cli.App) func(context.Context, core.Goal) (string, error) {
			return app.Coach.Analyze
		})
	},
}

var motivateCmd = &cobra.Command{
	Use:   "motivate",
	Short: "Get a short motivational nudge",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runCoach("Motivation", log.OpMotivate, func(app *cli.App) func(context.Context, core.Goal) (string, error) {
			return app.Coach.Motivate
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd, motivateCmd)
}

// runCoach prints the coach's text, or the fallback message when the request
// fails. A failed request does not fail the command.
func runCoach(title, op string, pick func(*cli.App) func(context.Context, core.Goal) (string, error)) error {
	return withApp(func(ctx context.Context, app *cli.App) error {
		text, err := pick(app)(ctx, app.Tracker.Goal())
		if analysis.Failed(err) {
			logger.Debug("Coach request failed", log.FieldOperation, op, log.FieldError, err)
		}
		fmt.Println()
		fmt.Print(cli.RenderCoach(title, text, err))
		fmt.Println()
		return nil
	})
}
