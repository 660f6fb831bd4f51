package importer

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"

	"github.com/raaihank/recipe-ai/internal/ingredients"
)

// FileRecord is one row of a CSV or Parquet import file
type FileRecord struct {
	RecipeID    string `parquet:"recipe_id" json:"recipe_id"`
	Ingredients string `parquet:"ingredients" json:"ingredients"`
}

// ReadRecordsFile loads ingredient records from CSV (recipe_id,ingredients header),
// JSON lines or Parquet. Rows without a recipe id or ingredients are skipped.
func ReadRecordsFile(path string, logger *zap.Logger) ([]ingredients.Record, error) {
	format, err := DetectFileFormat(path)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", format, err)
	}
	defer file.Close()

	var records []ingredients.Record
	switch format {
	case FormatCSV:
		records, err = readCSV(file, logger)
	case FormatParquet:
		records, err = readParquet(file, logger)
	case FormatJSON:
		records, err = readJSONLines(file, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("%s processing failed: %w", format, err)
	}

	logger.Info("Import file loaded",
		zap.String("file", path),
		zap.String("format", string(format)),
		zap.Int("records", len(records)))
	return records, nil
}

func readCSV(r io.Reader, logger *zap.Logger) ([]ingredients.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	idCol, ingredientsCol := -1, -1
	for i, column := range header {
		switch strings.ToLower(strings.TrimSpace(column)) {
		case "recipe_id", "id":
			idCol = i
		case "ingredients":
			ingredientsCol = i
		}
	}
	if idCol < 0 || ingredientsCol < 0 {
		return nil, fmt.Errorf("CSV header must contain recipe_id and ingredients columns, got %v", header)
	}

	var records []ingredients.Record
	for row := 2; ; row++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("Failed to read CSV record", zap.Int("row", row), zap.Error(err))
			continue
		}
		if idCol >= len(fields) || ingredientsCol >= len(fields) {
			logger.Warn("Invalid CSV record length", zap.Int("row", row), zap.Int("length", len(fields)))
			continue
		}

		if record, ok := normalize(fields[idCol], fields[ingredientsCol]); ok {
			records = append(records, record)
		} else {
			logger.Debug("Skipping CSV record without recipe id or ingredients", zap.Int("row", row))
		}
	}
	return records, nil
}

func readParquet(r io.ReaderAt, logger *zap.Logger) ([]ingredients.Record, error) {
	reader := parquet.NewReader(r, parquet.SchemaOf(new(FileRecord)))
	defer reader.Close()

	var records []ingredients.Record
	for {
		var row FileRecord
		err := reader.Read(&row)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read Parquet record: %w", err)
		}

		if record, ok := normalize(row.RecipeID, row.Ingredients); ok {
			records = append(records, record)
		} else {
			logger.Debug("Skipping Parquet record without recipe id or ingredients")
		}
	}
	return records, nil
}

// readJSONLines accepts both prepared records ({"recipe_id", "ingredients": "..."})
// and raw recipes ({"id", "ingredients": [...]}), one object per line.
func readJSONLines(r io.Reader, logger *zap.Logger) ([]ingredients.Record, error) {
	decoder := json.NewDecoder(r)

	var records []ingredients.Record
	for line := 1; ; line++ {
		var raw struct {
			RecipeID    RecipeID        `json:"recipe_id"`
			ID          RecipeID        `json:"id"`
			Ingredients json.RawMessage `json:"ingredients"`
		}
		err := decoder.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// The decoder cannot resynchronise after a syntax error.
			return nil, fmt.Errorf("invalid JSON at record %d: %w", line, err)
		}

		id := raw.RecipeID
		if id == "" {
			id = raw.ID
		}

		text, err := ingredientText(raw.Ingredients)
		if err != nil {
			logger.Warn("Skipping JSON record with malformed ingredients", zap.Int("record", line), zap.Error(err))
			continue
		}

		if record, ok := normalize(string(id), text); ok {
			records = append(records, record)
		} else {
			logger.Debug("Skipping JSON record without recipe id or ingredients", zap.Int("record", line))
		}
	}
	return records, nil
}

// ingredientText accepts a joined string or a list of ingredients
func ingredientText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text, nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return "", err
	}
	return joinIngredients(list), nil
}

func normalize(recipeID, text string) (ingredients.Record, bool) {
	recipeID = strings.TrimSpace(recipeID)
	text = strings.TrimSpace(text)
	if recipeID == "" || text == "" {
		return ingredients.Record{}, false
	}
	return ingredients.Record{RecipeID: recipeID, Ingredients: text}, true
}
