package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mailsift/mailsift/internal/display"
)

var clearForce bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all stored records and processed ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearForce {
			fmt.Print("This deletes every stored record and processed id. Type 'yes' to continue: ")
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if strings.TrimSpace(line) != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		if err := orch.ClearAll(); err != nil {
			return err
		}
		if !quietFlag {
			display.SuccessMsg("Cleared all stored data")
		}
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVarP(&clearForce, "force", "f", false, "Skip confirmation prompt")
	rootCmd.AddCommand(clearCmd)
}
