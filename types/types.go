package types

import (
	"time"

	"github.com/google/uuid"
)

type HitSource string

const (
	SourceVector HitSource = "vector"
	SourceText   HitSource = "text"
)

// Manual is one ingested source document. ID is a stable slug derived
// from the filename and is the key every citation routes through.
type Manual struct {
	ID         string
	Label      string
	ProductID  string
	SourcePath string
	PageCount  int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PageText is the extraction collaborator's output for a single page.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// Chunk is the unit of embedding and indexing. Page must be a real
// page of the source document, in [1, Manual.PageCount].
type Chunk struct {
	ID         uuid.UUID
	ManualID   string
	Page       int
	OrderIndex int
	Text       string
	Embedding  []float32
}

// RetrievalHit is a single backend result, normalized to one shape at
// the retriever boundary regardless of which store produced it.
type RetrievalHit struct {
	ChunkID  uuid.UUID
	ManualID string
	Page     int
	Score    float64
	Source   HitSource
	Text     string
}

// FusedCandidate is one page surviving deduplication, carrying the
// fused score and the winning chunk's text.
type FusedCandidate struct {
	Page      int       `json:"page"`
	ProductID string    `json:"product,omitempty"`
	Score     float64   `json:"score"`
	Snippet   string    `json:"snippet"`
	FullText  string    `json:"full"`
	ChunkID   uuid.UUID `json:"-"`
}

type Citation struct {
	Page    int     `json:"page"`
	Product string  `json:"product,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// AnswerResult is the complete outcome of one query. It is never
// returned partially filled: a synthesis failure drops the whole result.
type AnswerResult struct {
	Answer         string
	Citations      []Citation
	ManualSections []FusedCandidate
	UsedModel      string
	TopPages       []int
	ManualID       string
	Degraded       bool
}

// ManualInfo is the listing entry the viewer uses to populate its
// manual picker. PDFURL points at the static document path.
type ManualInfo struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	PDFURL string `json:"pdf_url"`
}

// ManualMeta is a resolved manual identity, either derived from the
// filename or taken verbatim from the override mapping.
type ManualMeta struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	ProductID string `json:"product_id"`
}
