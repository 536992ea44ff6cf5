package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/utils"
)

var (
	profFormat     string
	profOutputDir  string
	profSampleRows int
	profQuiet      bool
)

var profileCmd = &cobra.Command{
	Use:   "profile <files...>",
	Short: "Profile one or more CSV or XLSX files",
	Example: `  insightgenie profile sales.csv
  insightgenie profile "data/*.csv" --format markdown --output-dir summaries
  insightgenie profile sales.xlsx --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		format := strings.ToLower(strings.TrimSpace(profFormat))
		switch format {
		case "", "text":
			format = "text"
		case "markdown", "md":
			format = "markdown"
		case "json":
		default:
			return fmt.Errorf("unsupported --format: %s (use text|markdown|json)", profFormat)
		}
		out := cmd.OutOrStdout()
		total := len(files)
		for i, path := range files {
			if !profQuiet && total > 1 {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
			}
			t, p, err := loadDataset(path)
			if err != nil {
				return err
			}
			var body string
			switch format {
			case "markdown":
				body = analysis.Markdown(t, p, profSampleRows)
			case "json":
				b, err := utils.PrettyJSON(struct {
					*analysis.Profile
					Stats []analysis.ColumnStats `json:"stats"`
				}{p, analysis.Describe(t, p)})
				if err != nil {
					return err
				}
				body = string(b)
			default:
				body = profileText(t.Name, p)
			}
			if profOutputDir == "" {
				fmt.Fprintln(out, body)
				continue
			}
			ext := map[string]string{"markdown": ".summary.md", "json": ".profile.json", "text": ".profile.txt"}[format]
			dest := uniquePath(profOutputDir, baseName(path), ext)
			if err := utils.SafeWriteFile(dest, []byte(body)); err != nil {
				return fmt.Errorf("write summary: %w", err)
			}
			if !profQuiet {
				fmt.Fprintf(out, "✓ Wrote %s\n", dest)
			}
		}
		return nil
	},
}

func profileText(name string, p *analysis.Profile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset: %s\n", name)
	fmt.Fprintf(&b, "Rows: %d  Columns: %d  Missing: %.2f%%\n", p.Rows, p.Columns, p.MissingValuesPct)
	fmt.Fprintf(&b, "Numerical:   %s\n", joinOrNone(p.Numerical))
	fmt.Fprintf(&b, "Categorical: %s\n", joinOrNone(p.Categorical))
	fmt.Fprintf(&b, "Datetime:    %s\n", joinOrNone(p.Datetime))
	b.WriteString("\nColumn          Type         Missing  Missing %  Unique\n")
	for _, c := range p.Info {
		fmt.Fprintf(&b, "%-15s %-12s %7d  %8.2f%%  %6d\n", c.Name, c.Kind, c.Missing, c.MissingPct, c.Unique)
	}
	return strings.TrimRight(b.String(), "\n")
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringVar(&profFormat, "format", "text", "output format: text|markdown|json")
	profileCmd.Flags().StringVar(&profOutputDir, "output-dir", "", "write one summary file per input into this directory")
	profileCmd.Flags().IntVar(&profSampleRows, "sample-rows", 5, "sample rows in markdown summaries (0 disables)")
	profileCmd.Flags().BoolVar(&profQuiet, "quiet", false, "suppress progress and non-essential output")
}
