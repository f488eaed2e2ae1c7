package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
	"saveup/internal/core"
)

var flagMethod string

var addCmd = &cobra.Command{
	Use:     "add <amount>",
	Short:   "Log a drop toward the goal",
	Example: "  saveup add 250 --method upi",
	Args:    cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runAdd(args[0], func(app *cli.App) func(context.Context, core.Money, core.Method) error {
			return app.Tracker.AddContribution
		})
	},
}

var quickAddCmd = &cobra.Command{
	Use:   "quick-add <amount>",
	Short: "Log a drop with the quick-add method",
	Long:  "Log a drop with the quick-add method. Unless quick_add_method is \"selected\", quick adds are recorded as cash.",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return runAdd(args[0], func(app *cli.App) func(context.Context, core.Money, core.Method) error {
			return app.Tracker.QuickAdd
		})
	},
}

func init() {
	addCmd.Flags().StringVarP(&flagMethod, "method", "m", "cash", "Payment method (cash, upi)")
	quickAddCmd.Flags().StringVarP(&flagMethod, "method", "m", "cash", "Payment method used when quick add keeps the selection")
	rootCmd.AddCommand(addCmd, quickAddCmd)
}

func runAdd(rawAmount string, pick func(*cli.App) func(context.Context, core.Money, core.Method) error) error {
	amount, err := core.ParseAmount(rawAmount)
	if err != nil {
		return err
	}
	method, err := core.ParseMethod(flagMethod)
	if err != nil {
		return err
	}
	return withApp(func(ctx context.Context, app *cli.App) error {
		if err := pick(app)(ctx, amount, method); err != nil {
			return err
		}
		fmt.Printf("\n  Dropped %s. Nice!\n\n", cli.Rupee(amount))
		return nil
	})
}
