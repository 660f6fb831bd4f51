package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/raaihank/recipe-ai/internal/importer"
	"github.com/raaihank/recipe-ai/internal/ingredients"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		file      string
		chunkSize int
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import recipe ingredients into recipe-ai",
		Long: `Import ingredient lists into a running recipe-ai service.

Without --file every recipe is read from the recipes API (GET /recipes, cursor
pagination). With --file, records are read from CSV (recipe_id,ingredients),
JSON lines or Parquet. Records are uploaded in chunks; a chunk that keeps
failing after retries is skipped and reported in the summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if chunkSize > 0 {
				a.cfg.Import.ChunkSize = chunkSize
			}
			return a.runImport(cmd, file, dryRun)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "import records from a CSV, JSON lines or Parquet file")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "records per upload request (overrides import.chunk_size)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "prepare records without uploading")
	return cmd
}

func (a *app) runImport(cmd *cobra.Command, file string, dryRun bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	start := time.Now()
	client := importer.NewServiceClient(&a.cfg.Import)

	if !dryRun {
		if _, err := client.Health(ctx); err != nil {
			return fmt.Errorf("recipe-ai service is not available: %w", err)
		}
		fmt.Fprintln(out, "Recipe-AI service is available")
	}

	var (
		records []ingredients.Record
		recipes int
	)
	if file != "" {
		var err error
		records, err = importer.ReadRecordsFile(file, a.log.Logger)
		if err != nil {
			return err
		}
		recipes = len(records)
	} else {
		source := importer.NewRecipeSource(&a.cfg.Import, a.log.Logger)
		if err := source.Health(ctx); err != nil {
			return fmt.Errorf("recipes API is not available: %w", err)
		}
		fmt.Fprintln(out, "Recipes API is available")

		spinner := newBar(out, -1, "Fetching recipes")
		fetched, err := source.FetchAll(ctx, func(total int) {
			_ = spinner.Set(total)
		})
		_ = spinner.Finish()
		if err != nil {
			return err
		}
		recipes = len(fetched)

		var skipped int
		records, skipped = importer.PrepareRecords(fetched)
		if skipped > 0 {
			fmt.Fprintf(out, "Filtered out %d recipes without valid ingredients\n", skipped)
		}
	}

	if recipes == 0 {
		fmt.Fprintln(out, "No recipes found to import")
		return nil
	}
	if dryRun {
		fmt.Fprintf(out, "Dry run: %d records ready from %d recipes\n", len(records), recipes)
		return nil
	}

	bar := newBar(out, len(records), "Uploading")
	im := importer.New(client, &a.cfg.Import, a.log.Logger)
	im.OnChunk = func(result importer.ChunkResult) {
		_ = bar.Add(result.Records)
	}

	summary, err := im.Upload(ctx, records)
	_ = bar.Finish()
	if err != nil {
		return fmt.Errorf("import interrupted: %w", err)
	}

	printSummary(out, recipes, summary, time.Since(start))
	if summary.SuccessfulChunks < summary.TotalChunks {
		return fmt.Errorf("%d of %d chunks failed", summary.TotalChunks-summary.SuccessfulChunks, summary.TotalChunks)
	}
	return nil
}

func newBar(out io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	)
}

func printSummary(out io.Writer, recipes int, summary *importer.Summary, elapsed time.Duration) {
	fmt.Fprintln(out, "\n======= IMPORT SUMMARY =======")
	fmt.Fprintf(out, "Total recipes processed: %d\n", recipes)
	fmt.Fprintf(out, "Total ingredients uploaded: %d\n", len(summary.IDs))
	fmt.Fprintf(out, "Chunks: %d/%d successful\n", summary.SuccessfulChunks, summary.TotalChunks)
	fmt.Fprintf(out, "Execution time: %.2f seconds\n", elapsed.Seconds())
	if recipes > 0 {
		fmt.Fprintf(out, "Average time per recipe: %.3f seconds\n", elapsed.Seconds()/float64(recipes))
	}
	fmt.Fprintln(out, "==============================")
}
