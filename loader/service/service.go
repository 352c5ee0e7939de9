// Package service runs the batch ingestion pipeline: scan a directory
// of source documents, resolve metadata, extract, chunk, embed and
// index each one. Failures are isolated per file, never aborting the
// batch.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"manualrag/index"
	"manualrag/loader/internal"
	"manualrag/model"
	"manualrag/types"

	"github.com/panjf2000/ants/v2"
)

const overridesFilename = "manual_metadata.json"

type Service struct {
	cfg       types.Config
	extractor internal.Extractor
	embedder  model.Embedder
	chunker   *internal.Chunker
	indexer   *index.Indexer
	logger    *slog.Logger
}

type FileFailure struct {
	File string
	Err  error
}

// Report is the aggregate outcome of one ingestion batch.
type Report struct {
	Manuals []types.ManualInfo
	Failed  []FileFailure
}

func New(cfg types.Config, extractor internal.Extractor, embedder model.Embedder, indexer *index.Indexer) *Service {
	return &Service{
		cfg:       cfg,
		extractor: extractor,
		embedder:  embedder,
		chunker:   internal.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		indexer:   indexer,
		logger:    slog.Default(),
	}
}

// IngestDir processes every PDF in dir. Metadata resolution runs
// sequentially first so collision suffixes are deterministic; the
// per-file pipelines then run concurrently, each file's outcome
// independent of the others. On completion a manuals.json listing is
// written next to the PDFs for the viewer.
func (s *Service) IngestDir(ctx context.Context, dir string) (*Report, error) {
	overrides, err := internal.LoadOverrides(filepath.Join(dir, overridesFilename))
	if err != nil {
		return nil, fmt.Errorf("reading overrides: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading source directory: %w", err)
	}

	report := &Report{}
	resolver := internal.NewResolver(overrides)

	type job struct {
		path string
		meta types.ManualMeta
	}
	var jobs []job
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
			continue
		}
		meta, err := resolver.Resolve(entry.Name())
		if err != nil {
			s.logger.Error("metadata resolution failed", "file", entry.Name(), "err", err)
			report.Failed = append(report.Failed, FileFailure{File: entry.Name(), Err: err})
			continue
		}
		jobs = append(jobs, job{path: filepath.Join(dir, entry.Name()), meta: meta})
	}

	size := s.cfg.PoolSize
	if size < 1 {
		size = runtime.NumCPU() / 2
		if size < 1 {
			size = 1
		}
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, j := range jobs {
		j := j
		wg.Add(1)
		run := func() {
			defer wg.Done()
			start := time.Now()
			if err := s.IngestFile(ctx, j.path, j.meta); err != nil {
				s.logger.Error("ingestion failed", "file", j.path, "err", err)
				mu.Lock()
				report.Failed = append(report.Failed, FileFailure{File: filepath.Base(j.path), Err: err})
				mu.Unlock()
				return
			}
			s.logger.Info("manual ingested",
				"manual_id", j.meta.ID, "file", filepath.Base(j.path), "took", time.Since(start))
			mu.Lock()
			report.Manuals = append(report.Manuals, types.ManualInfo{
				ID:     j.meta.ID,
				Label:  j.meta.Label,
				PDFURL: "/manuals/" + filepath.Base(j.path),
			})
			mu.Unlock()
		}
		if err := pool.Submit(run); err != nil {
			run()
		}
	}
	wg.Wait()

	sort.Slice(report.Manuals, func(i, j int) bool { return report.Manuals[i].ID < report.Manuals[j].ID })

	if len(report.Manuals) > 0 {
		if err := writeManualsJSON(dir, report.Manuals); err != nil {
			s.logger.Error("failed to write manuals.json", "err", err)
		}
	}
	return report, nil
}

// IngestFile runs the whole pipeline for one file. The steps are
// causally ordered: extraction, chunking, embedding, then the dual
// index write.
func (s *Service) IngestFile(ctx context.Context, path string, meta types.ManualMeta) error {
	extraction, err := s.extractor.Extract(ctx, path)
	if err != nil {
		return err
	}

	chunks := s.chunker.Chunk(meta.ID, extraction.Pages)
	if len(chunks) == 0 {
		return types.ExtractionError{File: path, Err: errors.New("no text content")}
	}

	for i := range chunks {
		embedding, err := s.embedder.Embed(ctx, chunks[i].Text)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of %s: %w", chunks[i].OrderIndex, meta.ID, err)
		}
		chunks[i].Embedding = embedding
	}

	now := time.Now().UTC()
	manual := types.Manual{
		ID:         meta.ID,
		Label:      meta.Label,
		ProductID:  meta.ProductID,
		SourcePath: path,
		PageCount:  extraction.PageCount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return s.indexer.Index(ctx, manual, chunks)
}

func writeManualsJSON(dir string, manuals []types.ManualInfo) error {
	data, err := json.MarshalIndent(manuals, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manuals.json"), data, 0644)
}
