package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	probsSubject string
	probsBody    string
)

var probsCmd = &cobra.Command{
	Use:   "probs",
	Short: "Show all category probabilities for a subject/body pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		probs, err := gateway.AllProbabilities(cmd.Context(), probsSubject, probsBody)
		if err != nil {
			return err
		}

		if jsonOutput {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(probs)
		}

		for _, p := range probs {
			fmt.Printf("%-24s %.4f\n", p.Category, p.Probability)
		}
		return nil
	},
}

func init() {
	probsCmd.Flags().StringVar(&probsSubject, "subject", "", "Email subject")
	probsCmd.Flags().StringVar(&probsBody, "body", "", "Email body")
	rootCmd.AddCommand(probsCmd)
}
