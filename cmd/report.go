package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/report"
	"github.com/KaramelBytes/insightgenie/internal/utils"
	"github.com/KaramelBytes/insightgenie/internal/viz"
)

var (
	repTitle     string
	repOutputDir string
	repOutput    string
	repNoSummary bool
	repNoViz     bool
	repNoIns     bool
	repNoRecs    bool
	repAIIns     bool
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Write a self-contained HTML analysis report",
	Example: `  insightgenie report sales.csv --title "Q1 Sales"
  insightgenie report sales.csv --no-recommendations --output-dir reports`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, p, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		sections := report.Sections{
			Summary:         !repNoSummary,
			Visualizations:  !repNoViz,
			Insights:        !repNoIns,
			Recommendations: !repNoRecs,
		}
		in := report.Input{
			Table:          t,
			Profile:        p,
			Visualizations: viz.Auto(t, p, histogramBins()),
			Insights:       analysis.Texts(analysis.Insights(t, p)),
			Title:          repTitle,
			GeneratedAt:    time.Now(),
		}
		if sections.Summary || sections.Recommendations || repAIIns {
			a := connectAssistant(cmd.Context(), false)
			if a.Available() {
				if repAIIns && sections.Insights {
					in.Insights = a.Insights(cmd.Context(), t, p)
				}
				in.Summary, in.Recommendations, err = a.Narrative(cmd.Context(), t, p, in.Insights, sections.Summary, sections.Recommendations)
				if err != nil {
					return err
				}
			}
		}
		doc, err := report.Compose(in.Filter(sections))
		if err != nil {
			return err
		}
		dest := repOutput
		if dest == "" {
			dir := repOutputDir
			if dir == "" && cfg != nil {
				dir = cfg.ReportDir
			}
			if dir == "" {
				dir = "."
			}
			dest = filepath.Join(dir, report.Filename(repTitle))
		}
		if err := utils.SafeWriteFile(dest, doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "💾 Saved report to %s\n", dest)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&repTitle, "title", report.DefaultTitle, "report title")
	reportCmd.Flags().StringVar(&repOutputDir, "output-dir", "", "directory for the report (default: report_dir from config)")
	reportCmd.Flags().StringVarP(&repOutput, "output", "o", "", "explicit output path (overrides --output-dir)")
	reportCmd.Flags().BoolVar(&repNoSummary, "no-summary", false, "omit the executive summary")
	reportCmd.Flags().BoolVar(&repNoViz, "no-visualizations", false, "omit visualizations")
	reportCmd.Flags().BoolVar(&repNoIns, "no-insights", false, "omit key insights")
	reportCmd.Flags().BoolVar(&repNoRecs, "no-recommendations", false, "omit recommendations")
	reportCmd.Flags().BoolVar(&repAIIns, "ai-insights", false, "use model-written insights instead of heuristic ones")
}
