package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"manualrag/answer"
	"manualrag/retriever"
	"manualrag/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeManualStore struct {
	manuals map[string]types.Manual
}

func (f *fakeManualStore) SaveManual(ctx context.Context, m types.Manual) error { return nil }

func (f *fakeManualStore) GetManual(ctx context.Context, id string) (*types.Manual, error) {
	m, ok := f.manuals[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (f *fakeManualStore) ListManuals(ctx context.Context) ([]types.Manual, error) {
	return nil, nil
}

type fakeBackend struct {
	hits []types.RetrievalHit
	err  error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Search(ctx context.Context, query string, embedding []float32, manualID string, k int) ([]types.RetrievalHit, error) {
	return f.hits, f.err
}

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0}, nil
}

type fakeGenerator struct {
	output string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return f.output, f.err
}

func (f *fakeGenerator) Model() string { return "test-model" }

func newTestApp(vec, txt *fakeBackend, gen *fakeGenerator) *fiber.App {
	cfg := types.Config{
		VectorWeight:       0.6,
		TextWeight:         0.4,
		CitationMinScore:   0.05,
		MaxSections:        3,
		ContextTokenBudget: 3000,
		RetrieveTimeout:    time.Second,
	}
	manuals := &fakeManualStore{manuals: map[string]types.Manual{
		"washer-pro": {ID: "washer-pro", Label: "Washer Pro", ProductID: "WP500", PageCount: 40},
	}}
	retr := retriever.New(vec, txt, fakeEmbedder{}, cfg)
	synth := answer.NewSynthesizer(gen, answer.NewContextBuilder(cfg.ContextTokenBudget), cfg)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	app.Post("/api/v1/ask", NewRequestHandler(manuals, retr, synth).HandleAsk)
	return app
}

func postAsk(t *testing.T, app *fiber.App, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestHandleAsk(t *testing.T) {
	hits := []types.RetrievalHit{{
		ChunkID: uuid.New(),
		Page:    4,
		Score:   0.9,
		Source:  types.SourceVector,
		Text:    "Torque the wheel bolts to 35 Nm.",
	}}
	app := newTestApp(&fakeBackend{hits: hits}, &fakeBackend{}, &fakeGenerator{output: "35 Nm, see page 4."})

	resp := postAsk(t, app, `{"manual_id": "washer-pro", "query": "what is the torque spec"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.AskResponse
	decodeBody(t, resp, &got)
	assert.Equal(t, "35 Nm, see page 4.", got.Answer)
	assert.Equal(t, "washer-pro", got.ManualID)
	assert.Equal(t, "test-model", got.UsedModel)
	require.NotEmpty(t, got.TopPages)
	assert.Equal(t, 4, got.TopPages[0])
	require.NotEmpty(t, got.Citations)
	assert.Equal(t, 4, got.Citations[0].Page)
	assert.Equal(t, "WP500", got.Citations[0].Product)
	assert.False(t, got.Degraded)
}

func TestHandleAskUnknownManual(t *testing.T) {
	app := newTestApp(&fakeBackend{}, &fakeBackend{}, &fakeGenerator{output: "ok"})

	resp := postAsk(t, app, `{"manual_id": "nope", "query": "anything"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleAskValidation(t *testing.T) {
	app := newTestApp(&fakeBackend{}, &fakeBackend{}, &fakeGenerator{output: "ok"})

	resp := postAsk(t, app, `{"manual_id": "washer-pro"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	var got ValidationError
	decodeBody(t, resp, &got)
	assert.Contains(t, got.Errors, "Query")
}

func TestHandleAskMalformedBody(t *testing.T) {
	app := newTestApp(&fakeBackend{}, &fakeBackend{}, &fakeGenerator{output: "ok"})

	resp := postAsk(t, app, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleAskDegradedBackend(t *testing.T) {
	hits := []types.RetrievalHit{{ChunkID: uuid.New(), Page: 2, Score: 1.5, Source: types.SourceText, Text: "content"}}
	app := newTestApp(&fakeBackend{err: errors.New("vector store down")}, &fakeBackend{hits: hits}, &fakeGenerator{output: "ok"})

	resp := postAsk(t, app, `{"manual_id": "washer-pro", "query": "q"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.AskResponse
	decodeBody(t, resp, &got)
	assert.True(t, got.Degraded)
}

func TestHandleAskBothBackendsDown(t *testing.T) {
	app := newTestApp(
		&fakeBackend{err: errors.New("down")},
		&fakeBackend{err: errors.New("down")},
		&fakeGenerator{output: "ok"},
	)

	resp := postAsk(t, app, `{"manual_id": "washer-pro", "query": "q"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestHandleAskSynthesisFailure(t *testing.T) {
	hits := []types.RetrievalHit{{ChunkID: uuid.New(), Page: 1, Score: 0.9, Source: types.SourceVector, Text: "content"}}
	app := newTestApp(&fakeBackend{hits: hits}, &fakeBackend{}, &fakeGenerator{err: errors.New("model offline")})

	resp := postAsk(t, app, `{"manual_id": "washer-pro", "query": "q"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
