package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightgenie/internal/utils"
	"github.com/KaramelBytes/insightgenie/internal/viz"
)

var (
	vizKind      string
	vizX         string
	vizY         string
	vizAggregate string
	vizBins      int
	vizOutDir    string
)

var visualizeCmd = &cobra.Command{
	Use:   "visualize <file>",
	Short: "Generate chart specifications (auto, or custom with --kind)",
	Example: `  insightgenie visualize sales.csv --out-dir charts
  insightgenie visualize sales.csv --kind bar --x region --y revenue --aggregate mean
  insightgenie visualize sales.csv --kind histogram --x revenue --bins 30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, p, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		var charts []viz.Visualization
		if vizKind == "" {
			charts = viz.Auto(t, p, histogramBins())
		} else {
			kind, err := viz.ParseKind(vizKind)
			if err != nil {
				return err
			}
			v, err := viz.Build(t, viz.Request{Kind: kind, X: vizX, Y: vizY, Aggregate: vizAggregate, Bins: vizBins})
			if err != nil {
				return err
			}
			charts = []viz.Visualization{v}
		}
		out := cmd.OutOrStdout()
		if vizOutDir == "" {
			b, err := utils.PrettyJSON(charts)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		for i, v := range charts {
			dest := uniquePath(vizOutDir, fmt.Sprintf("%02d_%s", i+1, v.Kind), ".svg")
			if err := utils.SafeWriteFile(dest, []byte(viz.SVG(v))); err != nil {
				return fmt.Errorf("write chart: %w", err)
			}
			fmt.Fprintf(out, "✓ %s: %s\n", v.Title, dest)
		}
		if len(charts) == 0 {
			fmt.Fprintln(out, "(no charts for this dataset)")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(visualizeCmd)
	visualizeCmd.Flags().StringVar(&vizKind, "kind", "", "chart type: histogram|line|bar|box|scatter (default: automatic set)")
	visualizeCmd.Flags().StringVar(&vizX, "x", "", "x column (group column for box plots with --y)")
	visualizeCmd.Flags().StringVar(&vizY, "y", "", "y column")
	visualizeCmd.Flags().StringVar(&vizAggregate, "aggregate", "", "bar charts: 'mean' to average y per x")
	visualizeCmd.Flags().IntVar(&vizBins, "bins", 0, "histogram bins (5-50)")
	visualizeCmd.Flags().StringVar(&vizOutDir, "out-dir", "", "write SVG files here instead of printing JSON")
}
