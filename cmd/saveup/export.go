package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"saveup/internal/cli"
)

var flagDryRun bool

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Append new drops to the configured Google Sheet",
	Long:  "Append the drops the sheet does not have yet. Without Google Sheets settings, or with --dry-run, the export goes to an in-memory sheet and only reports counts.",
	RunE: func(_ *cobra.Command, _ []string) error {
		return withApp(func(ctx context.Context, app *cli.App) error {
			dryRun := flagDryRun || !app.Config.SheetsEnabled()
			res, err := app.Export(ctx, dryRun)
			if err != nil {
				return err
			}
			fmt.Println()
			if dryRun {
				fmt.Println("  Dry run, nothing written.")
			}
			fmt.Print(cli.RenderTable(cli.Table{
				Title:   "Export",
				Headers: []string{"", "Rows"},
				Rows: [][]string{
					{"Appended", fmt.Sprintf("%d", res.Appended)},
					{"Already in sheet", fmt.Sprintf("%d", res.Skipped)},
				},
			}))
			if res.RowRef != "" {
				fmt.Printf("  Last range: %s\n", res.RowRef)
			}
			fmt.Println()
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "Report what would be appended without writing")
	rootCmd.AddCommand(exportCmd)
}
