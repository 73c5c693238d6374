package main

import (
	"github.com/spf13/cobra"

	"github.com/mailsift/mailsift/internal/display"
	"github.com/mailsift/mailsift/internal/export"
)

var exportPath string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Snapshot the JSON stores into a SQLite database",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, err := records.GetAll()
		if err != nil {
			return err
		}

		if err := export.ToSQLite(exportPath, all, processed.All()); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Exported %d records to %s", len(all), exportPath)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPath, "out", "./data/mailsift.db", "SQLite output path")
	rootCmd.AddCommand(exportCmd)
}
