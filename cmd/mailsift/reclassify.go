package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailsift/mailsift/internal/auth"
	"github.com/mailsift/mailsift/internal/display"
	"github.com/mailsift/mailsift/internal/gmail"
)

var reclassifyCmd = &cobra.Command{
	Use:   "reclassify <id>",
	Short: "Re-run classification for one message id",
	Long:  "Fetch the message again, classify it, and fully replace any stored record, regardless of processed state.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, err := auth.ServiceFromFiles(ctx, cfg.CredentialsPath)
		if err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}

		rec, err := orch.Reclassify(ctx, gmail.NewSource(svc, logger), args[0])
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		}

		display.Record(*rec)
		display.SuccessMsg("Reclassified %s", rec.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reclassifyCmd)
}
