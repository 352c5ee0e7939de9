package types

import (
	"os"
	"strconv"
	"time"
)

// Config collects every tunable the service reads from the environment.
// Defaults match the values the system was calibrated with.
type Config struct {
	SourceDir          string
	ChunkSize          int
	ChunkOverlap       int
	ContextTokenBudget int
	VectorWeight       float64
	TextWeight         float64
	CitationMinScore   float64
	MaxSections        int
	RetrieveTimeout    time.Duration
	PoolSize           int
}

func LoadConfig() Config {
	return Config{
		SourceDir:          getenv("MANUALS_DIR", "./manuals"),
		ChunkSize:          getenvInt("CHUNK_SIZE", 250),
		ChunkOverlap:       getenvInt("CHUNK_OVERLAP", 50),
		ContextTokenBudget: getenvInt("CONTEXT_TOKEN_BUDGET", 3000),
		VectorWeight:       getenvFloat("FUSION_VECTOR_WEIGHT", 0.6),
		TextWeight:         getenvFloat("FUSION_TEXT_WEIGHT", 0.4),
		CitationMinScore:   getenvFloat("CITATION_MIN_SCORE", 0.05),
		MaxSections:        getenvInt("MAX_SECTIONS", 3),
		RetrieveTimeout:    getenvDuration("RETRIEVE_TIMEOUT", 10*time.Second),
		PoolSize:           getenvInt("INGEST_POOL_SIZE", 4),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
