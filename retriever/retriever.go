// Package retriever fans a query out to the vector and text backends
// and fuses their results into one ranked candidate list.
package retriever

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"manualrag/model"
	"manualrag/store"
	"manualrag/types"
)

type Retriever struct {
	vector       store.SearchBackend
	text         store.SearchBackend
	embedder     model.Embedder
	vectorWeight float64
	textWeight   float64
	timeout      time.Duration
	logger       *slog.Logger
}

// Result carries the fused candidates plus the advisory degraded flag:
// true when only one backend contributed.
type Result struct {
	Candidates []types.FusedCandidate
	Degraded   bool
}

func New(vector, text store.SearchBackend, embedder model.Embedder, cfg types.Config) *Retriever {
	return &Retriever{
		vector:       vector,
		text:         text,
		embedder:     embedder,
		vectorWeight: cfg.VectorWeight,
		textWeight:   cfg.TextWeight,
		timeout:      cfg.RetrieveTimeout,
		logger:       slog.Default(),
	}
}

// Retrieve runs both backends concurrently, filtered to the manual,
// and fuses the top 2k of each into at most k candidates. One failing
// backend degrades the result instead of failing the query; both
// failing is a RetrievalBackendError.
func (r *Retriever) Retrieve(ctx context.Context, query, manualID string, k int) (*Result, error) {
	if k <= 0 {
		k = 5
	}
	fetch := 2 * k

	// An embedding failure takes the vector side down with it; the
	// lexical side does not need the vector and still runs.
	embedding, embErr := r.embedder.Embed(ctx, query)

	type backendOut struct {
		hits []types.RetrievalHit
		err  error
	}
	var vecOut, txtOut backendOut

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if embErr != nil {
			vecOut.err = embErr
			return
		}
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		vecOut.hits, vecOut.err = r.vector.Search(cctx, query, embedding, manualID, fetch)
	}()
	go func() {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		txtOut.hits, txtOut.err = r.text.Search(cctx, query, nil, manualID, fetch)
	}()
	wg.Wait()

	if vecOut.err != nil && txtOut.err != nil {
		return nil, types.RetrievalBackendError{VectorErr: vecOut.err, TextErr: txtOut.err}
	}

	degraded := false
	if vecOut.err != nil {
		r.logger.Warn("vector backend unavailable, degrading to text-only",
			"manual_id", manualID, "err", vecOut.err)
		degraded = true
		vecOut.hits = nil
	}
	if txtOut.err != nil {
		r.logger.Warn("text backend unavailable, degrading to vector-only",
			"manual_id", manualID, "err", txtOut.err)
		degraded = true
		txtOut.hits = nil
	}

	candidates := Fuse(vecOut.hits, txtOut.hits, r.vectorWeight, r.textWeight, k)
	return &Result{Candidates: candidates, Degraded: degraded}, nil
}
