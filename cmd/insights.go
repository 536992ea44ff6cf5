package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/utils"
)

var (
	insAI   bool
	insJSON bool
)

var insightsCmd = &cobra.Command{
	Use:   "insights <file>",
	Short: "Derive heuristic (or, with --ai, model-written) insights",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, p, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if insAI {
			a := connectAssistant(cmd.Context(), insJSON)
			texts := a.Insights(cmd.Context(), t, p)
			if insJSON {
				b, err := utils.PrettyJSON(texts)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(b))
				return nil
			}
			for _, s := range texts {
				fmt.Fprintf(out, "- %s\n", s)
			}
			return nil
		}
		ins := analysis.Insights(t, p)
		if insJSON {
			b, err := utils.PrettyJSON(ins)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		if len(ins) == 0 {
			fmt.Fprintln(out, "(no insights)")
			return nil
		}
		for _, in := range ins {
			fmt.Fprintf(out, "- %s\n", in.Text)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(insightsCmd)
	insightsCmd.Flags().BoolVar(&insAI, "ai", false, "ask the language model (falls back to heuristics)")
	insightsCmd.Flags().BoolVar(&insJSON, "json", false, "print JSON")
}
