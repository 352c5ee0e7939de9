package store

import (
	"context"
	"log/slog"

	"manualrag/types"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SearchBackend is the capability both retrieval stores expose. The
// vector store ranks by the query embedding, the text store by the
// query string; each ignores the argument it has no use for.
type SearchBackend interface {
	Name() string
	Search(ctx context.Context, query string, embedding []float32, manualID string, k int) ([]types.RetrievalHit, error)
}

// ChunkStore adds the scoped write side used by the dual indexer. All
// writes are partitioned by manual id, so concurrent ingestion of
// different manuals never interferes.
type ChunkStore interface {
	SearchBackend
	DeleteByManual(ctx context.Context, manualID string) error
	InsertChunks(ctx context.Context, chunks []types.Chunk) error
	PagesForManual(ctx context.Context, manualID string) ([]int, error)
}

type ManualStore interface {
	SaveManual(ctx context.Context, m types.Manual) error
	GetManual(ctx context.Context, id string) (*types.Manual, error)
	ListManuals(ctx context.Context) ([]types.Manual, error)
}

type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool:   pool,
		logger: slog.Default(),
	}, nil
}

// Pool exposes the shared connection pool for the backend stores.
func (p *PostgresStore) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PostgresStore) SaveManual(ctx context.Context, m types.Manual) error {
	query := `INSERT INTO manuals (id, label, product_id, source_path, page_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			label = EXCLUDED.label,
			product_id = EXCLUDED.product_id,
			source_path = EXCLUDED.source_path,
			page_count = EXCLUDED.page_count,
			updated_at = EXCLUDED.updated_at
		`
	_, err := p.pool.Exec(ctx, query,
		m.ID, m.Label, nullable(m.ProductID), m.SourcePath, m.PageCount, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func (p *PostgresStore) GetManual(ctx context.Context, id string) (*types.Manual, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, label, COALESCE(product_id, ''), source_path, page_count, created_at, updated_at
		 FROM manuals WHERE id = $1`, id)

	m := &types.Manual{}
	err := row.Scan(&m.ID, &m.Label, &m.ProductID, &m.SourcePath, &m.PageCount, &m.CreatedAt, &m.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (p *PostgresStore) ListManuals(ctx context.Context) ([]types.Manual, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, label, COALESCE(product_id, ''), source_path, page_count, created_at, updated_at
		 FROM manuals ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var manuals []types.Manual
	for rows.Next() {
		var m types.Manual
		if err := rows.Scan(&m.ID, &m.Label, &m.ProductID, &m.SourcePath, &m.PageCount, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		manuals = append(manuals, m)
	}
	return manuals, rows.Err()
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS manuals (
		id TEXT PRIMARY KEY,
		label TEXT NOT NULL,
		product_id TEXT,
		source_path TEXT,
		page_count INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE,
		updated_at TIMESTAMP WITH TIME ZONE
	);

	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS vector_chunks (
		id UUID PRIMARY KEY,
		manual_id TEXT NOT NULL,
		page INT NOT NULL,
		order_index INT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(768)
	);

	CREATE INDEX IF NOT EXISTS idx_vector_chunks_embedding ON vector_chunks
		USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
	CREATE INDEX IF NOT EXISTS idx_vector_chunks_manual_id ON vector_chunks(manual_id);

	CREATE TABLE IF NOT EXISTS text_chunks (
		id UUID PRIMARY KEY,
		manual_id TEXT NOT NULL,
		page INT NOT NULL,
		order_index INT NOT NULL,
		content TEXT NOT NULL,
		tsv tsvector GENERATED ALWAYS AS (to_tsvector('english', content)) STORED
	);

	CREATE INDEX IF NOT EXISTS idx_text_chunks_tsv ON text_chunks USING GIN (tsv);
	CREATE INDEX IF NOT EXISTS idx_text_chunks_manual_id ON text_chunks(manual_id);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		p.logger.Info("postgres connection pool closed")
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
