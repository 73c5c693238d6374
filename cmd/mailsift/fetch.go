package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mailsift/mailsift/internal/auth"
	"github.com/mailsift/mailsift/internal/display"
	"github.com/mailsift/mailsift/internal/gmail"
)

var (
	fetchMax   int
	fetchQuery string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch and classify new Gmail messages",
	Long:  "List recent messages, skip anything already classified, classify the rest, and persist the results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		svc, err := auth.ServiceFromFiles(ctx, cfg.CredentialsPath)
		if err != nil {
			return fmt.Errorf("authenticate: %w", err)
		}
		src := gmail.NewSource(svc, logger)

		query := fetchQuery
		if query == "" {
			query = cfg.DefaultQuery
		}

		result, err := orch.Ingest(ctx, src, query, fetchMax)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		if !quietFlag {
			for _, rec := range result.Processed {
				display.Record(rec)
				fmt.Println()
			}
			display.SuccessMsg("Classified %d new messages", result.NewCount)
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().IntVar(&fetchMax, "max", 30, "Maximum new messages to classify")
	fetchCmd.Flags().StringVar(&fetchQuery, "query", "", "Gmail search query (default: configured GMAIL_QUERY)")
	rootCmd.AddCommand(fetchCmd)
}
