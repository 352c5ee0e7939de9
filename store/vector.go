package store

import (
	"context"
	"fmt"

	"manualrag/types"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// VectorStore is the dense retrieval backend: pgvector cosine
// similarity over the vector_chunks partition of one manual.
type VectorStore struct {
	pool *pgxpool.Pool
}

func NewVectorStore(pool *pgxpool.Pool) *VectorStore {
	return &VectorStore{pool: pool}
}

func (s *VectorStore) Name() string { return "vector" }

func (s *VectorStore) Search(ctx context.Context, _ string, embedding []float32, manualID string, k int) ([]types.RetrievalHit, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("empty query embedding")
	}

	vector := pgvector.NewVector(embedding)

	query := `
		SELECT id, manual_id, page, content,
		       1 - (embedding <=> $1) AS score
		FROM vector_chunks
		WHERE manual_id = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, query, vector, manualID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []types.RetrievalHit
	for rows.Next() {
		hit := types.RetrievalHit{Source: types.SourceVector}
		if err := rows.Scan(&hit.ChunkID, &hit.ManualID, &hit.Page, &hit.Text, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *VectorStore) DeleteByManual(ctx context.Context, manualID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM vector_chunks WHERE manual_id = $1`, manualID)
	return err
}

func (s *VectorStore) InsertChunks(ctx context.Context, chunks []types.Chunk) error {
	for _, c := range chunks {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO vector_chunks (id, manual_id, page, order_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.ManualID, c.Page, c.OrderIndex, c.Text, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *VectorStore) PagesForManual(ctx context.Context, manualID string) ([]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT page FROM vector_chunks WHERE manual_id = $1 ORDER BY page`, manualID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}
