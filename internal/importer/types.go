package importer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Config contains import and bulk maintenance settings
type Config struct {
	RecipesAPIURL  string        `yaml:"recipes_api_url" mapstructure:"recipes_api_url"`   // "http://localhost:3000"
	ServiceURL     string        `yaml:"service_url" mapstructure:"service_url"`           // "http://localhost:3100"
	FetchBatchSize int           `yaml:"fetch_batch_size" mapstructure:"fetch_batch_size"` // 50
	ChunkSize      int           `yaml:"chunk_size" mapstructure:"chunk_size"`             // 10
	MaxRetries     int           `yaml:"max_retries" mapstructure:"max_retries"`           // 3 attempts in total
	RetryDelay     time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`           // 1s, doubled per retry
	ChunkInterval  time.Duration `yaml:"chunk_interval" mapstructure:"chunk_interval"`     // 200ms
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout"`                   // per HTTP call
}

// RecipeID accepts both numeric and string ids from the recipes API
type RecipeID string

// UnmarshalJSON implements json.Unmarshaler
func (id *RecipeID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecipeID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("recipe id must be a string or number: %w", err)
	}
	*id = RecipeID(n.String())
	return nil
}

// Recipe is the subset of a recipes API record the importer needs
type Recipe struct {
	ID          RecipeID `json:"id"`
	Title       string   `json:"title,omitempty"`
	Ingredients []string `json:"ingredients"`
}

// RecipePage is one page of GET /recipes
type RecipePage struct {
	Data       []Recipe `json:"data"`
	Pagination struct {
		NextCursor string `json:"next_cursor"`
		HasMore    bool   `json:"has_more"`
	} `json:"pagination"`
}

// Summary reports the outcome of an upload
type Summary struct {
	Records          int           `json:"records"`
	IDs              []string      `json:"ids"`
	SuccessfulChunks int           `json:"successful_chunks"`
	TotalChunks      int           `json:"total_chunks"`
	FailedRecords    int           `json:"failed_records"`
	Duration         time.Duration `json:"duration"`
}

// DeleteResult is the response of a bulk delete
type DeleteResult struct {
	Success      bool   `json:"success"`
	DeletedCount int    `json:"deletedCount"`
	Message      string `json:"message"`
}

// FileFormat represents supported file formats
type FileFormat string

const (
	FormatCSV     FileFormat = "csv"
	FormatParquet FileFormat = "parquet"
	FormatJSON    FileFormat = "json"
)

// DetectFileFormat detects file format from extension
func DetectFileFormat(filename string) (FileFormat, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	case ".json", ".jsonl", ".ndjson":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported file format: %s", filename)
	}
}
