package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/query"
	"github.com/KaramelBytes/insightgenie/internal/utils"
)

var (
	askAI   bool
	askJSON bool
)

var askCmd = &cobra.Command{
	Use:   "ask <file> <question>",
	Short: "Answer a question with the rule-based interpreter (or the model with --ai)",
	Example: `  insightgenie ask sales.csv "What is the average revenue?"
  insightgenie ask sales.csv "show revenue by region"
  insightgenie ask sales.csv "Which region has the highest revenue?" --ai`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, p, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		question := strings.TrimSpace(strings.Join(args[1:], " "))
		out := cmd.OutOrStdout()
		if askAI {
			a := connectAssistant(cmd.Context(), false)
			fmt.Fprintln(out, a.Answer(cmd.Context(), question, t, p, nil))
			return nil
		}
		res := query.Interpret(question, t, p)
		if askJSON {
			b, err := utils.PrettyJSON(struct {
				Type   string       `json:"type"`
				Result query.Result `json:"result"`
			}{res.Type(), res})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		printResult(out, res)
		return nil
	},
}

func printResult(w io.Writer, res query.Result) {
	fmt.Fprintln(w, res.Message())
	switch r := res.(type) {
	case query.Statistic:
		for _, v := range r.Values {
			fmt.Fprintf(w, "  %s: %.4f\n", v.Column, v.Mean)
		}
	case query.TableSlice:
		var b strings.Builder
		analysis.WriteMarkdownTable(&b, r.Table)
		fmt.Fprint(w, b.String())
	case query.Visualization:
		fmt.Fprintf(w, "  chart: %s (%s)\n", r.Chart.Title, r.Chart.Kind)
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askAI, "ai", false, "answer with the language model")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the interpreter result as JSON")
}
