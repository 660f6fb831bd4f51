package vector

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
)

// maxRowsPerStatement keeps multi-row inserts under the Postgres bind parameter limit.
const maxRowsPerStatement = 1000

// PGBackend delegates storage and similarity search to PostgreSQL + pgvector
type PGBackend struct {
	db         *sqlx.DB
	dimensions int
	logger     *zap.Logger
}

// NewPGBackend connects to the database and ensures the schema exists
func NewPGBackend(config *PostgresConfig, logger *zap.Logger) (*PGBackend, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	backend := &PGBackend{
		db:         db,
		dimensions: config.Dimensions,
		logger:     logger,
	}

	if err := backend.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize vector backend: %w", err)
	}

	logger.Info("Postgres vector backend initialized",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns),
		zap.Int("dimensions", config.Dimensions))

	return backend, nil
}

// initialize checks the connection and pgvector extension, then creates the tables
func (b *PGBackend) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	var extensionExists bool
	query := "SELECT EXISTS(SELECT 1 FROM pg_extension WHERE extname = 'vector')"
	if err := b.db.GetContext(ctx, &extensionExists, query); err != nil {
		return fmt.Errorf("failed to check pgvector extension: %w", err)
	}
	if !extensionExists {
		return fmt.Errorf("pgvector extension is not installed")
	}

	for _, stmt := range schemaStatements(b.dimensions) {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	b.logger.Info("Database initialized with pgvector extension")
	return nil
}

func schemaStatements(dimensions int) []string {
	columnType := "vector"
	if dimensions > 0 {
		columnType = fmt.Sprintf("vector(%d)", dimensions)
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS vector_collections (
			name       TEXT PRIMARY KEY,
			dimension  INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vector_documents (
			collection TEXT NOT NULL REFERENCES vector_collections(name) ON DELETE CASCADE,
			id         TEXT NOT NULL,
			seq        BIGSERIAL,
			embedding  %s NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
			document   TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, id)
		)`, columnType),
		`CREATE INDEX IF NOT EXISTS idx_vector_documents_metadata
			ON vector_documents USING gin (metadata)`,
	}
}

// OpenCollection registers the collection if it does not exist yet
func (b *PGBackend) OpenCollection(ctx context.Context, name string) (Collection, error) {
	if name == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	query := `INSERT INTO vector_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`
	if _, err := b.db.ExecContext(ctx, query, name); err != nil {
		return nil, fmt.Errorf("failed to open collection %q: %w", name, err)
	}

	b.logger.Info("Postgres collection opened", zap.String("collection", name))
	return &pgCollection{name: name, backend: b}, nil
}

// CreateIndex creates an HNSW cosine index over the embedding column
func (b *PGBackend) CreateIndex(ctx context.Context) error {
	if b.dimensions <= 0 {
		return fmt.Errorf("an index requires store.postgres.dimensions to be set")
	}

	b.logger.Info("Creating vector similarity index...")

	query := `
		CREATE INDEX IF NOT EXISTS idx_vector_documents_embedding
		ON vector_documents USING hnsw (embedding vector_cosine_ops)`

	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create vector index: %w", err)
	}

	b.logger.Info("Vector similarity index created successfully")
	return nil
}

// Close closes the database connection
func (b *PGBackend) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

type pgCollection struct {
	name    string
	backend *PGBackend
}

type documentRow struct {
	ID        string          `db:"id"`
	Embedding pgvector.Vector `db:"embedding"`
	Metadata  []byte          `db:"metadata"`
	Content   string          `db:"document"`
}

type matchRow struct {
	ID       string  `db:"id"`
	Metadata []byte  `db:"metadata"`
	Content  string  `db:"document"`
	Distance float64 `db:"distance"`
}

func (c *pgCollection) Name() string {
	return c.name
}

// Upsert writes every document inside one transaction
func (c *pgCollection) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	docs = dedupeDocuments(docs)
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("%w: document %d has no id", ErrInvalidDocument, i)
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("%w: document %q has no embedding", ErrInvalidDocument, doc.ID)
		}
	}

	start := time.Now()
	tx, err := c.backend.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	if err := c.checkDimension(ctx, tx, docs); err != nil {
		return err
	}

	for start := 0; start < len(docs); start += maxRowsPerStatement {
		end := start + maxRowsPerStatement
		if end > len(docs) {
			end = len(docs)
		}
		if err := c.insertRows(ctx, tx, docs[start:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit upsert: %w", err)
	}

	c.backend.logger.Debug("Documents upserted",
		zap.String("collection", c.name),
		zap.Int("count", len(docs)),
		zap.Duration("duration", time.Since(start)))

	return nil
}

// checkDimension locks the collection row and pins its dimension on first write
func (c *pgCollection) checkDimension(ctx context.Context, tx *sqlx.Tx, docs []Document) error {
	var dimension sql.NullInt64
	query := `SELECT dimension FROM vector_collections WHERE name = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &dimension, query, c.name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("collection %q does not exist", c.name)
		}
		return fmt.Errorf("failed to read collection dimension: %w", err)
	}

	want := int(dimension.Int64)
	if !dimension.Valid {
		want = len(docs[0].Embedding)
	}
	for _, doc := range docs {
		if len(doc.Embedding) != want {
			return fmt.Errorf("%w: document %q has %d dimensions, collection has %d",
				ErrDimensionMismatch, doc.ID, len(doc.Embedding), want)
		}
	}

	if !dimension.Valid {
		update := `UPDATE vector_collections SET dimension = $2 WHERE name = $1`
		if _, err := tx.ExecContext(ctx, update, c.name, want); err != nil {
			return fmt.Errorf("failed to set collection dimension: %w", err)
		}
	}
	return nil
}

func (c *pgCollection) insertRows(ctx context.Context, tx *sqlx.Tx, docs []Document) error {
	valueStrings := make([]string, 0, len(docs))
	valueArgs := make([]interface{}, 0, len(docs)*5)

	for i, doc := range docs {
		metadata, err := json.Marshal(nonNilMetadata(doc.Metadata))
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %q: %w", doc.ID, err)
		}
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d, $%d::jsonb, $%d)", i*5+1, i*5+2, i*5+3, i*5+4, i*5+5))
		valueArgs = append(valueArgs,
			c.name,
			doc.ID,
			pgvector.NewVector(doc.Embedding),
			string(metadata),
			doc.Content,
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO vector_documents (collection, id, embedding, metadata, document)
		VALUES %s
		ON CONFLICT (collection, id) DO UPDATE
		SET embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			document = EXCLUDED.document`,
		strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		c.backend.logger.Error("Batch upsert failed", zap.Error(err), zap.String("collection", c.name))
		return fmt.Errorf("batch upsert failed: %w", err)
	}
	return nil
}

// Get returns documents whose metadata contains every key/value of where
func (c *pgCollection) Get(ctx context.Context, where Where) ([]Document, error) {
	filter, err := json.Marshal(nonNilMetadata(where))
	if err != nil {
		return nil, fmt.Errorf("failed to encode filter: %w", err)
	}

	query := `
		SELECT id, embedding, metadata, document
		FROM vector_documents
		WHERE collection = $1 AND metadata @> $2::jsonb
		ORDER BY seq`

	var rows []documentRow
	if err := c.backend.db.SelectContext(ctx, &rows, query, c.name, string(filter)); err != nil {
		return nil, fmt.Errorf("filtered get failed: %w", err)
	}

	docs := make([]Document, 0, len(rows))
	for _, row := range rows {
		metadata, err := decodeMetadata(row.Metadata)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{
			ID:        row.ID,
			Embedding: row.Embedding.Slice(),
			Metadata:  metadata,
			Content:   row.Content,
		})
	}
	return docs, nil
}

// Query ranks by pgvector cosine distance; seq breaks ties by insertion order
func (c *pgCollection) Query(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return []Match{}, nil
	}

	query := `
		SELECT id, metadata, document, embedding <=> $2 AS distance
		FROM vector_documents
		WHERE collection = $1
		ORDER BY embedding <=> $2, seq
		LIMIT $3`

	start := time.Now()
	var rows []matchRow
	if err := c.backend.db.SelectContext(ctx, &rows, query, c.name, pgvector.NewVector(embedding), topK); err != nil {
		c.backend.logger.Error("Similarity search failed", zap.Error(err))
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		metadata, err := decodeMetadata(row.Metadata)
		if err != nil {
			return nil, err
		}
		similarity := 1 - row.Distance
		// pgvector yields NaN when either vector has zero norm.
		if math.IsNaN(similarity) {
			similarity = 0
		}
		matches = append(matches, Match{
			Document: Document{
				ID:       row.ID,
				Metadata: metadata,
				Content:  row.Content,
			},
			Similarity: similarity,
		})
	}

	c.backend.logger.Debug("Similarity search completed",
		zap.String("collection", c.name),
		zap.Int("results", len(matches)),
		zap.Duration("duration", time.Since(start)))

	return matches, nil
}

func (c *pgCollection) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `DELETE FROM vector_documents WHERE collection = $1 AND id = ANY($2)`
	res, err := c.backend.db.ExecContext(ctx, query, c.name, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete failed: %w", err)
	}
	return rowsAffected(res)
}

func (c *pgCollection) DeleteAll(ctx context.Context) (int, error) {
	res, err := c.backend.db.ExecContext(ctx, `DELETE FROM vector_documents WHERE collection = $1`, c.name)
	if err != nil {
		return 0, fmt.Errorf("delete all failed: %w", err)
	}
	return rowsAffected(res)
}

func (c *pgCollection) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.backend.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM vector_documents WHERE collection = $1`, c.name); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// dedupeDocuments keeps the last version of each id at the position of its first occurrence
func dedupeDocuments(docs []Document) []Document {
	seen := make(map[string]int, len(docs))
	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		if pos, ok := seen[doc.ID]; ok {
			out[pos] = doc
			continue
		}
		seen[doc.ID] = len(out)
		out = append(out, doc)
	}
	return out
}

func nonNilMetadata(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func decodeMetadata(raw []byte) (map[string]string, error) {
	metadata := map[string]string{}
	if len(raw) == 0 {
		return metadata, nil
	}
	if err := json.Unmarshal(raw, &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return metadata, nil
}

func rowsAffected(res sql.Result) (int, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("could not get rows affected: %w", err)
	}
	return int(n), nil
}

// maskDatabaseURL masks sensitive information in database URL for logging
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
