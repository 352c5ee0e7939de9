package model

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedNormalizesToUnitLength(t *testing.T) {
	var gotReq ollamaEmbeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(ollamaEmbeddingResponse{Embedding: []float64{3, 4, 0}})
	}))
	defer srv.Close()

	e := &OllamaEmbedder{apiURL: srv.URL, model: "nomic-embed-text", timeout: 5 * time.Second}

	vec, err := e.Embed(context.Background(), "drain pump location")
	require.NoError(t, err)
	require.Len(t, vec, 3)
	assert.Equal(t, "nomic-embed-text", gotReq.Model)
	assert.Equal(t, "drain pump location", gotReq.Prompt)

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
}

func TestEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	e := &OllamaEmbedder{apiURL: srv.URL, model: "missing", timeout: 5 * time.Second}

	_, err := e.Embed(context.Background(), "text")
	assert.ErrorContains(t, err, "status 404")
}

func TestGenerateSingleResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: "Clean the filter monthly."})
	}))
	defer srv.Close()

	g := &OllamaGenerator{apiURL: srv.URL, model: "llama3", timeout: 5 * time.Second}

	out, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Clean the filter monthly.", out)
}

func TestGenerateStreamedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": "Clean the "}` + "\n" + `{"response": "filter."}` + "\n"))
	}))
	defer srv.Close()

	g := &OllamaGenerator{apiURL: srv.URL, model: "llama3", timeout: 5 * time.Second}

	out, err := g.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Clean the filter.", out)
}

func TestGenerateEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{}"))
	}))
	defer srv.Close()

	g := &OllamaGenerator{apiURL: srv.URL, model: "llama3", timeout: 5 * time.Second}

	_, err := g.Generate(context.Background(), "prompt")
	assert.ErrorContains(t, err, "empty response")
}
