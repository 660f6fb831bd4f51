package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raaihank/recipe-ai/internal/importer"
)

var defaultStatusQueries = []string{
	"chicken, garlic, lemon",
	"flour, sugar, eggs",
	"tomato, basil, mozzarella",
}

func newStatusCmd(a *app) *cobra.Command {
	var (
		queries []string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check service health and run sample searches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			client := importer.NewServiceClient(&a.cfg.Import)

			serviceTime, err := client.Health(cmd.Context())
			if err != nil {
				return fmt.Errorf("recipe-ai health check failed: %w", err)
			}
			fmt.Fprintln(out, "Recipe-AI service is healthy")
			fmt.Fprintf(out, "Service time: %s\n", serviceTime.Local().Format("2006-01-02 15:04:05"))

			failed := 0
			for _, query := range queries {
				results, err := client.Search(cmd.Context(), query, limit)
				if err != nil {
					failed++
					fmt.Fprintf(out, "\nSearch for %q failed: %v\n", query, err)
					continue
				}
				if len(results) == 0 {
					fmt.Fprintf(out, "\nNo results found for %q\n", query)
					continue
				}

				fmt.Fprintf(out, "\nTop results for %q:\n", query)
				for i, result := range results {
					fmt.Fprintf(out, "%d. Recipe ID: %s\n", i+1, result.RecipeID)
					fmt.Fprintf(out, "   Ingredients: %s\n", truncate(result.Ingredients, 100))
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d searches failed", failed, len(queries))
			}
			fmt.Fprintln(out, "\nRecipe-AI service is operational")
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&queries, "query", "q", defaultStatusQueries, "ingredient queries to try")
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "results per query")
	return cmd
}
