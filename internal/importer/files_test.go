package importer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/segmentio/parquet-go"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestDetectFileFormat(t *testing.T) {
	tests := []struct {
		name    string
		want    FileFormat
		wantErr bool
	}{
		{"recipes.csv", FormatCSV, false},
		{"recipes.CSV", FormatCSV, false},
		{"recipes.parquet", FormatParquet, false},
		{"recipes.jsonl", FormatJSON, false},
		{"recipes.json", FormatJSON, false},
		{"recipes.xlsx", "", true},
	}

	for _, tt := range tests {
		got, err := DetectFileFormat(tt.name)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("DetectFileFormat(%q) = %q, %v", tt.name, got, err)
		}
	}
}

func TestReadRecordsFile(t *testing.T) {
	logger := zap.NewNop()

	t.Run("CSV", func(t *testing.T) {
		path := writeFile(t, "records.csv", "ingredients,recipe_id\n\"tomato, basil\",1\n,2\negg,3\n")
		records, err := ReadRecordsFile(path, logger)
		if err != nil {
			t.Fatalf("ReadRecordsFile() error = %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("records = %+v", records)
		}
		if records[0].RecipeID != "1" || records[0].Ingredients != "tomato, basil" {
			t.Errorf("first record = %+v", records[0])
		}
		if records[1].RecipeID != "3" {
			t.Errorf("second record = %+v", records[1])
		}
	})

	t.Run("CSVMissingColumns", func(t *testing.T) {
		path := writeFile(t, "records.csv", "id,title\n1,soup\n")
		if _, err := ReadRecordsFile(path, logger); err == nil {
			t.Fatal("expected error for missing ingredients column")
		}
	})

	t.Run("JSONLines", func(t *testing.T) {
		path := writeFile(t, "records.jsonl", `{"recipe_id":"1","ingredients":"flour, sugar"}
{"id":2,"ingredients":["chicken","garlic"]}
{"id":3,"ingredients":[]}
{"id":4,"ingredients":{"bad":true}}
`)
		records, err := ReadRecordsFile(path, logger)
		if err != nil {
			t.Fatalf("ReadRecordsFile() error = %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("records = %+v", records)
		}
		if records[1].RecipeID != "2" || records[1].Ingredients != "chicken, garlic" {
			t.Errorf("second record = %+v", records[1])
		}
	})

	t.Run("Parquet", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "records.parquet")
		file, err := os.Create(path)
		if err != nil {
			t.Fatalf("failed to create parquet file: %v", err)
		}
		writer := parquet.NewWriter(file, parquet.SchemaOf(new(FileRecord)))
		rows := []FileRecord{
			{RecipeID: "10", Ingredients: "rice, beans"},
			{RecipeID: "11", Ingredients: ""},
			{RecipeID: "12", Ingredients: "lemon"},
		}
		for _, row := range rows {
			if err := writer.Write(row); err != nil {
				t.Fatalf("failed to write row: %v", err)
			}
		}
		if err := writer.Close(); err != nil {
			t.Fatalf("failed to close writer: %v", err)
		}
		file.Close()

		records, err := ReadRecordsFile(path, logger)
		if err != nil {
			t.Fatalf("ReadRecordsFile() error = %v", err)
		}
		if len(records) != 2 || records[0].RecipeID != "10" || records[1].Ingredients != "lemon" {
			t.Errorf("records = %+v", records)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		if _, err := ReadRecordsFile(filepath.Join(t.TempDir(), "absent.csv"), logger); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}
