package cli

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raaihank/recipe-ai/internal/importer"
)

func newDeleteAllCmd(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every stored ingredient list",
		Long: `Delete every ingredient list from the recipe-ai collection.
This cannot be undone. A second confirmation is required when store.environment
is production; --yes skips both prompts.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())
			client := importer.NewServiceClient(&a.cfg.Import)

			fmt.Fprintln(out, "WARNING: This will delete ALL ingredients from the recipe-ai service.")
			fmt.Fprintln(out, "This operation cannot be undone.")

			if _, err := client.Health(cmd.Context()); err != nil {
				return fmt.Errorf("recipe-ai service is not available: %w", err)
			}

			if !yes {
				if !confirm(in, out, "Are you sure you want to delete ALL ingredients?") {
					fmt.Fprintln(out, "Operation cancelled.")
					return nil
				}
				if a.cfg.Store.Environment == "production" &&
					!confirm(in, out, "You are in PRODUCTION environment. Really proceed with deletion?") {
					fmt.Fprintln(out, "Operation cancelled.")
					return nil
				}
			}

			result, err := client.DeleteAll(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to delete ingredients: %w", err)
			}

			fmt.Fprintf(out, "Deleted %d ingredients\n", result.DeletedCount)
			fmt.Fprintf(out, "Message: %s\n", result.Message)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompts")
	return cmd
}
