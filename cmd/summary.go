package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary <file>",
	Short: "Ask the language model for a short dataset summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, p, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		a := connectAssistant(cmd.Context(), false)
		fmt.Fprintln(cmd.OutOrStdout(), a.Summary(cmd.Context(), t, p))
		return nil
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <file>",
	Short: "Suggest questions worth asking about a dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, p, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		a := connectAssistant(cmd.Context(), true)
		for _, q := range a.SuggestedQuestions(cmd.Context(), p) {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s\n", q)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(suggestCmd)
}
