// Package index keeps the vector and text stores holding the same
// chunk set per manual.
package index

import (
	"context"
	"log/slog"

	"manualrag/store"
	"manualrag/types"
)

// Indexer writes each chunk set into both retrieval stores as a
// delete-then-insert scoped to the manual id. Both scoped deletes run
// before any insert; if either delete fails the ingestion aborts and
// the previously indexed state stays queryable. A failed insert can
// leave the manual temporarily unqueryable, never inconsistent across
// versions.
type Indexer struct {
	vector  store.ChunkStore
	text    store.ChunkStore
	manuals store.ManualStore
	locks   *store.ManualLocks
	logger  *slog.Logger
}

func New(vector, text store.ChunkStore, manuals store.ManualStore) *Indexer {
	return &Indexer{
		vector:  vector,
		text:    text,
		manuals: manuals,
		locks:   store.NewManualLocks(),
		logger:  slog.Default(),
	}
}

// Index replaces the manual's chunk set in both stores and upserts the
// manual row. The per-manual lock is held for the whole sequence so a
// concurrent re-ingestion of the same manual cannot interleave.
func (ix *Indexer) Index(ctx context.Context, manual types.Manual, chunks []types.Chunk) error {
	unlock := ix.locks.Lock(manual.ID)
	defer unlock()

	if err := ix.vector.DeleteByManual(ctx, manual.ID); err != nil {
		return types.IndexWriteError{ManualID: manual.ID, Backend: ix.vector.Name(), Op: "delete", Err: err}
	}
	if err := ix.text.DeleteByManual(ctx, manual.ID); err != nil {
		return types.IndexWriteError{ManualID: manual.ID, Backend: ix.text.Name(), Op: "delete", Err: err}
	}

	if err := ix.vector.InsertChunks(ctx, chunks); err != nil {
		return types.IndexWriteError{ManualID: manual.ID, Backend: ix.vector.Name(), Op: "insert", Err: err}
	}
	if err := ix.text.InsertChunks(ctx, chunks); err != nil {
		return types.IndexWriteError{ManualID: manual.ID, Backend: ix.text.Name(), Op: "insert", Err: err}
	}

	if err := ix.manuals.SaveManual(ctx, manual); err != nil {
		return types.IndexWriteError{ManualID: manual.ID, Backend: "manuals", Op: "upsert", Err: err}
	}

	ix.logger.Info("manual indexed",
		"manual_id", manual.ID, "chunks", len(chunks), "pages", manual.PageCount)
	return nil
}
