package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailsift/mailsift/internal/display"
)

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show stored classified emails",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			rec, err := records.Get(args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("no record for id %s", args[0])
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			}
			display.Record(*rec)
			return nil
		}

		all, err := records.GetAll()
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(all)
		}

		display.Header(fmt.Sprintf("%d classified emails", len(all)))
		fmt.Println()
		for _, rec := range all {
			display.Record(rec)
			fmt.Println()
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
