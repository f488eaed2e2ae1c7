package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
)

var flagYes bool

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Start a dashboard session",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			if _, err := app.Session.Start(ctx); err != nil {
				return err
			}
			fmt.Println("\n  Logged in.")
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the dashboard session",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			if err := app.Session.End(ctx); err != nil {
				return err
			}
			fmt.Println("\n  Logged out.")
			return nil
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the goal and every logged drop",
	RunE: func(_ *cobra.Command, _ []string) error {
		if !flagYes {
			return errors.New("reset deletes the goal and its history; pass --yes to confirm")
		}
		return withApp(func(ctx context.Context, app *cli.App) error {
			if !app.Tracker.Goal().Active() {
				fmt.Println("\n  Nothing to reset.")
				return nil
			}
			if err := app.Tracker.Reset(ctx); err != nil {
				return err
			}
			fmt.Println("\n  Goal cleared.")
			return nil
		})
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&flagYes, "yes", "y", false, "Confirm the reset")
	rootCmd.AddCommand(loginCmd, logoutCmd, resetCmd)
}
