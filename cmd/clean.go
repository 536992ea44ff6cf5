package cmd

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightgenie/internal/analysis"
	"github.com/KaramelBytes/insightgenie/internal/utils"
)

var (
	cleanMethod      string
	cleanValue       string
	cleanColumns     []string
	cleanCap         []string
	cleanNormalize   string
	cleanNormColumns []string
	cleanOutput      string
)

var cleanCmd = &cobra.Command{
	Use:   "clean <file>",
	Short: "Handle missing values, cap outliers, normalize, and export",
	Example: `  insightgenie clean sales.csv --method median -o cleaned.csv
  insightgenie clean sales.csv --method value --value 0 --columns units
  insightgenie clean sales.xlsx --cap-outliers revenue --normalize standard -o cleaned.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, _, err := loadDataset(args[0])
		if err != nil {
			return err
		}
		status := cmd.ErrOrStderr()
		if cleanMethod != "" {
			m, err := analysis.ParseCleanMethod(cleanMethod)
			if err != nil {
				return err
			}
			out, res, err := analysis.Clean(t, analysis.CleanOptions{Method: m, Value: cleanValue, Columns: cleanColumns})
			if err != nil {
				return err
			}
			t = out
			fmt.Fprintf(status, "✓ %s: dropped %d rows, filled %d cells\n", m, res.RowsDropped, res.CellsFilled)
			if len(res.Skipped) > 0 {
				fmt.Fprintf(status, "⚠ Warning: skipped columns: %s\n", strings.Join(res.Skipped, ", "))
			}
		}
		for _, col := range cleanCap {
			out, res, err := analysis.CapOutliers(t, col)
			if err != nil {
				return err
			}
			t = out
			fmt.Fprintf(status, "✓ %s\n", res)
		}
		if cleanNormalize != "" {
			out, err := analysis.Normalize(t, cleanNormColumns, analysis.NormalizeMethod(strings.ToLower(cleanNormalize)))
			if err != nil {
				return err
			}
			t = out
			fmt.Fprintf(status, "✓ Applied %s normalization\n", cleanNormalize)
		}

		var buf bytes.Buffer
		ext := strings.ToLower(filepath.Ext(cleanOutput))
		switch ext {
		case ".xlsx":
			err = t.WriteXLSX(&buf)
		case "", ".csv":
			err = t.WriteCSV(&buf)
		default:
			return fmt.Errorf("unsupported output extension %q (use .csv or .xlsx)", ext)
		}
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if cleanOutput == "" {
			_, err := cmd.OutOrStdout().Write(buf.Bytes())
			return err
		}
		if err := utils.SafeWriteFile(cleanOutput, buf.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(status, "💾 Saved %d rows to %s\n", t.NumRows(), cleanOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringVar(&cleanMethod, "method", "", "missing values: drop|mean|median|mode|value")
	cleanCmd.Flags().StringVar(&cleanValue, "value", "", "fill value for --method value")
	cleanCmd.Flags().StringSliceVar(&cleanColumns, "columns", nil, "columns to clean (default: all)")
	cleanCmd.Flags().StringSliceVar(&cleanCap, "cap-outliers", nil, "numeric columns to cap at the IQR fences (repeatable)")
	cleanCmd.Flags().StringVar(&cleanNormalize, "normalize", "", "scale numeric columns: minmax|standard")
	cleanCmd.Flags().StringSliceVar(&cleanNormColumns, "normalize-columns", nil, "columns to normalize (default: all numeric)")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "output file (.csv or .xlsx); prints CSV when omitted")
}
