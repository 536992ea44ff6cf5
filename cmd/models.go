package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/insightgenie/internal/ai"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect the model catalog used to size prompts",
	Example: `  insightgenie models list
  insightgenie models list --provider openrouter
  insightgenie models list --catalog ./models.json`,
}

var modelsCatalog string

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known models and their context windows",
	RunE: func(cmd *cobra.Command, args []string) error {
		if modelsCatalog != "" {
			m, err := ai.LoadCatalogFromJSON(modelsCatalog)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}
			ai.MergeCatalog(m)
		}
		provider := ""
		if rootCmd.PersistentFlags().Changed("provider") {
			provider = strings.ToLower(flagProvider)
		}
		out := cmd.OutOrStdout()
		for _, m := range ai.Models(provider) {
			fmt.Fprintf(out, "%-34s %-11s %9d tokens\n", m.Name, m.Provider, m.ContextTokens)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsListCmd.Flags().StringVar(&modelsCatalog, "catalog", "", "JSON catalog file to merge before listing")
}
