package importer

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/raaihank/recipe-ai/internal/ingredients"
)

// BatchUploader stores a chunk of records and returns their ids
type BatchUploader interface {
	AddBatch(ctx context.Context, records []ingredients.Record) ([]string, error)
}

var _ BatchUploader = (*ServiceClient)(nil)

// ChunkResult reports one uploaded (or skipped) chunk
type ChunkResult struct {
	Index   int
	Records int
	IDs     int
	Err     error
}

// Importer uploads prepared records in paced, retried chunks
type Importer struct {
	uploader BatchUploader
	config   *Config
	logger   *zap.Logger

	// OnChunk, when set, is called after every chunk
	OnChunk func(ChunkResult)
}

// New creates an importer
func New(uploader BatchUploader, config *Config, logger *zap.Logger) *Importer {
	return &Importer{
		uploader: uploader,
		config:   config,
		logger:   logger,
	}
}

// PrepareRecords turns recipes into ingredient records. Recipes without an id or
// without ingredients are dropped and counted in skipped.
func PrepareRecords(recipes []Recipe) (records []ingredients.Record, skipped int) {
	records = make([]ingredients.Record, 0, len(recipes))
	for _, recipe := range recipes {
		if len(recipe.Ingredients) == 0 {
			skipped++
			continue
		}
		record, ok := normalize(string(recipe.ID), joinIngredients(recipe.Ingredients))
		if !ok {
			skipped++
			continue
		}
		records = append(records, record)
	}
	return records, skipped
}

func joinIngredients(list []string) string {
	return strings.Join(list, ", ")
}

// Upload sends records in chunks of ChunkSize. A chunk that still fails after the
// retry policy is logged and skipped; Upload only returns an error if ctx ends.
func (im *Importer) Upload(ctx context.Context, records []ingredients.Record) (*Summary, error) {
	start := time.Now()
	chunks := chunkRecords(records, im.config.ChunkSize)
	summary := &Summary{
		Records:     len(records),
		IDs:         make([]string, 0, len(records)),
		TotalChunks: len(chunks),
	}

	if len(chunks) == 0 {
		im.logger.Warn("No valid records to upload")
		return summary, nil
	}

	im.logger.Info("Starting upload",
		zap.Int("records", len(records)),
		zap.Int("chunks", len(chunks)),
		zap.Int("chunk_size", im.config.ChunkSize))

	pacing := rate.NewLimiter(rate.Inf, 1)
	if im.config.ChunkInterval > 0 {
		pacing = rate.NewLimiter(rate.Every(im.config.ChunkInterval), 1)
	}

	for i, chunk := range chunks {
		if err := pacing.Wait(ctx); err != nil {
			summary.Duration = time.Since(start)
			return summary, err
		}

		ids, err := im.uploadChunk(ctx, i, chunk)
		result := ChunkResult{Index: i, Records: len(chunk), IDs: len(ids), Err: err}

		if err != nil {
			if ctx.Err() != nil {
				summary.Duration = time.Since(start)
				return summary, ctx.Err()
			}
			summary.FailedRecords += len(chunk)
			im.logger.Error("Chunk upload failed, continuing with next chunk",
				zap.Int("chunk", i+1),
				zap.Int("records", len(chunk)),
				zap.Error(err))
		} else {
			summary.IDs = append(summary.IDs, ids...)
			summary.SuccessfulChunks++
		}

		if im.OnChunk != nil {
			im.OnChunk(result)
		}
	}

	summary.Duration = time.Since(start)
	im.logger.Info("Upload complete",
		zap.Int("successful_chunks", summary.SuccessfulChunks),
		zap.Int("total_chunks", summary.TotalChunks),
		zap.Int("ids", len(summary.IDs)),
		zap.Duration("duration", summary.Duration))

	return summary, nil
}

func (im *Importer) uploadChunk(ctx context.Context, index int, chunk []ingredients.Record) ([]string, error) {
	var ids []string
	attempt := 0
	err := withRetry(ctx, im.config, func(ctx context.Context) error {
		attempt++
		result, err := im.uploader.AddBatch(ctx, chunk)
		if err != nil {
			im.logger.Warn("Chunk upload attempt failed",
				zap.Int("chunk", index+1),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		ids = result
		return nil
	})
	return ids, err
}

func chunkRecords(records []ingredients.Record, size int) [][]ingredients.Record {
	if size < 1 {
		size = 1
	}
	chunks := make([][]ingredients.Record, 0, (len(records)+size-1)/size)
	for i := 0; i < len(records); i += size {
		end := i + size
		if end > len(records) {
			end = len(records)
		}
		chunks = append(chunks, records[i:end])
	}
	return chunks
}
