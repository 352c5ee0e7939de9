package service

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"manualrag/index"
	"manualrag/loader/internal"
	"manualrag/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	docs map[string]*internal.Extraction
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (*internal.Extraction, error) {
	doc, ok := f.docs[filepath.Base(path)]
	if !ok {
		return nil, types.ExtractionError{File: path, Err: errors.New("conversion failed")}
	}
	return doc, nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.5, 0.5}, nil
}

type memChunkStore struct {
	name   string
	mu     sync.Mutex
	chunks map[string][]types.Chunk
}

func newMemChunkStore(name string) *memChunkStore {
	return &memChunkStore{name: name, chunks: make(map[string][]types.Chunk)}
}

func (m *memChunkStore) Name() string { return m.name }

func (m *memChunkStore) Search(ctx context.Context, query string, embedding []float32, manualID string, k int) ([]types.RetrievalHit, error) {
	return nil, nil
}

func (m *memChunkStore) DeleteByManual(ctx context.Context, manualID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, manualID)
	return nil
}

func (m *memChunkStore) InsertChunks(ctx context.Context, chunks []types.Chunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range chunks {
		m.chunks[c.ManualID] = append(m.chunks[c.ManualID], c)
	}
	return nil
}

func (m *memChunkStore) PagesForManual(ctx context.Context, manualID string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int]bool)
	var pages []int
	for _, c := range m.chunks[manualID] {
		if !seen[c.Page] {
			seen[c.Page] = true
			pages = append(pages, c.Page)
		}
	}
	sort.Ints(pages)
	return pages, nil
}

type memManualStore struct {
	mu      sync.Mutex
	manuals map[string]types.Manual
}

func newMemManualStore() *memManualStore {
	return &memManualStore{manuals: make(map[string]types.Manual)}
}

func (m *memManualStore) SaveManual(ctx context.Context, manual types.Manual) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.manuals[manual.ID] = manual
	return nil
}

func (m *memManualStore) GetManual(ctx context.Context, id string) (*types.Manual, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	manual, ok := m.manuals[id]
	if !ok {
		return nil, nil
	}
	return &manual, nil
}

func (m *memManualStore) ListManuals(ctx context.Context) ([]types.Manual, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.Manual
	for _, manual := range m.manuals {
		out = append(out, manual)
	}
	return out, nil
}

func pages(texts ...string) []types.PageText {
	out := make([]types.PageText, len(texts))
	for i, text := range texts {
		out[i] = types.PageText{Page: i + 1, Text: text}
	}
	return out
}

func writePDFs(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("%PDF-1.4"), 0644))
	}
}

func TestIngestDir(t *testing.T) {
	dir := t.TempDir()
	writePDFs(t, dir, "Alpha_Manual.pdf", "Beta_Manual.pdf", "Broken_Scan.pdf")

	extractor := &fakeExtractor{docs: map[string]*internal.Extraction{
		"Alpha_Manual.pdf": {
			Pages:     pages("Install the alpha unit on a flat surface.", "Torque the base bolts to 12 Nm."),
			PageCount: 2,
		},
		"Beta_Manual.pdf": {
			Pages:     pages("The beta unit ships preassembled."),
			PageCount: 1,
		},
	}}

	vec := newMemChunkStore("vector")
	txt := newMemChunkStore("text")
	manuals := newMemManualStore()

	cfg := types.Config{ChunkSize: 250, ChunkOverlap: 20, PoolSize: 2}
	svc := New(cfg, extractor, fakeEmbedder{}, index.New(vec, txt, manuals))

	report, err := svc.IngestDir(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, report.Manuals, 2)
	assert.Equal(t, "alpha-manual", report.Manuals[0].ID)
	assert.Equal(t, "/manuals/Alpha_Manual.pdf", report.Manuals[0].PDFURL)
	assert.Equal(t, "beta-manual", report.Manuals[1].ID)

	require.Len(t, report.Failed, 1)
	assert.Equal(t, "Broken_Scan.pdf", report.Failed[0].File)
	var extErr types.ExtractionError
	require.ErrorAs(t, report.Failed[0].Err, &extErr)

	// Both stores hold the same chunk set per manual, every chunk
	// carries its page and embedding.
	for _, id := range []string{"alpha-manual", "beta-manual"} {
		require.NotEmpty(t, vec.chunks[id])
		assert.Len(t, txt.chunks[id], len(vec.chunks[id]))

		manual, err := manuals.GetManual(context.Background(), id)
		require.NoError(t, err)
		require.NotNil(t, manual)
		for _, c := range vec.chunks[id] {
			assert.GreaterOrEqual(t, c.Page, 1)
			assert.LessOrEqual(t, c.Page, manual.PageCount)
			assert.NotEmpty(t, c.Embedding)
		}
	}

	// The listing the viewer reads was written next to the PDFs.
	data, err := os.ReadFile(filepath.Join(dir, "manuals.json"))
	require.NoError(t, err)
	var listed []types.ManualInfo
	require.NoError(t, json.Unmarshal(data, &listed))
	assert.Equal(t, report.Manuals, listed)
}

func TestIngestDirHonorsOverrides(t *testing.T) {
	dir := t.TempDir()
	writePDFs(t, dir, "scan_0042.pdf")
	overrides := `{"scan_0042.pdf": {"id": "dishwasher-pro", "label": "Dishwasher Pro", "product_id": "DW900"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, overridesFilename), []byte(overrides), 0644))

	extractor := &fakeExtractor{docs: map[string]*internal.Extraction{
		"scan_0042.pdf": {Pages: pages("Rinse aid compartment is on the door."), PageCount: 1},
	}}
	manuals := newMemManualStore()
	svc := New(types.Config{PoolSize: 1}, extractor, fakeEmbedder{},
		index.New(newMemChunkStore("vector"), newMemChunkStore("text"), manuals))

	report, err := svc.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, report.Manuals, 1)
	assert.Equal(t, "dishwasher-pro", report.Manuals[0].ID)

	manual, err := manuals.GetManual(context.Background(), "dishwasher-pro")
	require.NoError(t, err)
	require.NotNil(t, manual)
	assert.Equal(t, "DW900", manual.ProductID)
}

func TestIngestFileEmptyExtraction(t *testing.T) {
	extractor := &fakeExtractor{docs: map[string]*internal.Extraction{
		"empty.pdf": {Pages: nil, PageCount: 3},
	}}
	svc := New(types.Config{PoolSize: 1}, extractor, fakeEmbedder{},
		index.New(newMemChunkStore("vector"), newMemChunkStore("text"), newMemManualStore()))

	err := svc.IngestFile(context.Background(), "/tmp/empty.pdf", types.ManualMeta{ID: "empty", Label: "Empty"})
	var extErr types.ExtractionError
	require.ErrorAs(t, err, &extErr)
}

func TestIngestDirIgnoresNonPDFs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a manual"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive.pdf.d"), 0755))

	svc := New(types.Config{PoolSize: 1}, &fakeExtractor{}, fakeEmbedder{},
		index.New(newMemChunkStore("vector"), newMemChunkStore("text"), newMemManualStore()))

	report, err := svc.IngestDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, report.Manuals)
	assert.Empty(t, report.Failed)
}
