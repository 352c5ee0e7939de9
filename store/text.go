package store

import (
	"context"

	"manualrag/types"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TextStore is the lexical retrieval backend: Postgres full-text
// search ranked with ts_rank_cd over the text_chunks partition of one
// manual. It shares a database with the vector store but owns its own
// table and write path, so either backend can fail or be rebuilt
// independently.
type TextStore struct {
	pool *pgxpool.Pool
}

func NewTextStore(pool *pgxpool.Pool) *TextStore {
	return &TextStore{pool: pool}
}

func (s *TextStore) Name() string { return "text" }

func (s *TextStore) Search(ctx context.Context, query string, _ []float32, manualID string, k int) ([]types.RetrievalHit, error) {
	sql := `
		SELECT id, manual_id, page, content,
		       ts_rank_cd(tsv, websearch_to_tsquery('english', $1)) AS score
		FROM text_chunks
		WHERE manual_id = $2 AND tsv @@ websearch_to_tsquery('english', $1)
		ORDER BY score DESC, page ASC
		LIMIT $3
	`
	rows, err := s.pool.Query(ctx, sql, query, manualID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []types.RetrievalHit
	for rows.Next() {
		hit := types.RetrievalHit{Source: types.SourceText}
		if err := rows.Scan(&hit.ChunkID, &hit.ManualID, &hit.Page, &hit.Text, &hit.Score); err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

func (s *TextStore) DeleteByManual(ctx context.Context, manualID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM text_chunks WHERE manual_id = $1`, manualID)
	return err
}

func (s *TextStore) InsertChunks(ctx context.Context, chunks []types.Chunk) error {
	for _, c := range chunks {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO text_chunks (id, manual_id, page, order_index, content)
			 VALUES ($1, $2, $3, $4, $5)`,
			c.ID, c.ManualID, c.Page, c.OrderIndex, c.Text,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *TextStore) PagesForManual(ctx context.Context, manualID string) ([]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT page FROM text_chunks WHERE manual_id = $1 ORDER BY page`, manualID)
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
