package answer

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	"manualrag/model"
	"manualrag/types"
)

// Synthesizer invokes the language model over the packed context and
// derives the citation set from retrieval provenance. The model's own
// page mentions are untrusted output and can only reorder pages that
// were actually in the context, never add one — that keeps every
// citation traceable to indexed content no matter what the model says.
type Synthesizer struct {
	generator   model.Generator
	builder     *ContextBuilder
	minScore    float64
	maxSections int
	logger      *slog.Logger
}

var pageMentionRe = regexp.MustCompile(`(?i)page\s+(\d+)`)

func NewSynthesizer(generator model.Generator, builder *ContextBuilder, cfg types.Config) *Synthesizer {
	maxSections := cfg.MaxSections
	if maxSections <= 0 {
		maxSections = 3
	}
	return &Synthesizer{
		generator:   generator,
		builder:     builder,
		minScore:    cfg.CitationMinScore,
		maxSections: maxSections,
		logger:      slog.Default(),
	}
}

// Answer produces the complete AnswerResult for one query, or a
// SynthesisError and nothing else.
func (s *Synthesizer) Answer(ctx context.Context, query string, manual types.Manual, candidates []types.FusedCandidate, degraded bool) (*types.AnswerResult, error) {
	bc := s.builder.Build(candidates)

	contextText := bc.Text
	if contextText == "" {
		contextText = "empty"
	}

	output, err := s.generator.Generate(ctx, buildPrompt(query, contextText))
	if err != nil {
		return nil, types.SynthesisError{Err: err}
	}

	citations := s.citations(bc.Included, manual.ProductID, output)

	topPages := make([]int, 0, len(citations))
	seen := make(map[int]bool)
	for _, c := range citations {
		if !seen[c.Page] {
			seen[c.Page] = true
			topPages = append(topPages, c.Page)
		}
	}

	sections := make([]types.FusedCandidate, 0, s.maxSections)
	for _, cand := range candidates {
		if len(sections) == s.maxSections {
			break
		}
		cand.ProductID = manual.ProductID
		sections = append(sections, cand)
	}

	return &types.AnswerResult{
		Answer:         output,
		Citations:      citations,
		ManualSections: sections,
		UsedModel:      s.generator.Model(),
		TopPages:       topPages,
		ManualID:       manual.ID,
		Degraded:       degraded,
	}, nil
}

// citations keeps the context pages whose fused score clears the
// relevance floor, most relevant first. Pages the model itself
// mentions are promoted within that set as a secondary signal.
func (s *Synthesizer) citations(included []types.FusedCandidate, productID, output string) []types.Citation {
	mentioned := make(map[int]bool)
	for _, m := range pageMentionRe.FindAllStringSubmatch(output, -1) {
		if page, err := strconv.Atoi(m[1]); err == nil {
			mentioned[page] = true
		}
	}

	var citations []types.Citation
	for _, cand := range included {
		if cand.Score < s.minScore {
			continue
		}
		citations = append(citations, types.Citation{
			Page:    cand.Page,
			Product: productID,
			Score:   cand.Score,
		})
	}

	sort.SliceStable(citations, func(i, j int) bool {
		mi, mj := mentioned[citations[i].Page], mentioned[citations[j].Page]
		if mi != mj {
			return mi
		}
		return citations[i].Score > citations[j].Score
	})
	return citations
}

func buildPrompt(query, contextText string) string {
	return fmt.Sprintf(`Answer the question using only the manual excerpts below. Each excerpt is tagged with the page it comes from. Reference the page numbers you used. If the excerpts do not contain the answer, say so clearly.

Manual excerpts:
%s

Question:
%s

Answer:`, contextText, query)
}
