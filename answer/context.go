// Package answer turns ranked candidates into a bounded model context
// and a grounded, citation-bearing answer.
package answer

import (
	"fmt"
	"strings"

	"manualrag/types"

	"github.com/pkoukk/tiktoken-go"
)

// ContextBuilder greedily packs candidates, in fused-score order, into
// a single context string under a token budget. A candidate is
// included whole or not at all; its text is never split across the
// boundary. Page provenance of every included segment is preserved for
// citation construction.
type ContextBuilder struct {
	budget int
	enc    *tiktoken.Tiktoken
}

// BuiltContext maps the packed context back to its sources: Included
// keeps candidate order, Pages the ordered distinct pages drawn from.
type BuiltContext struct {
	Text     string
	Included []types.FusedCandidate
	Pages    []int
}

func NewContextBuilder(budget int) *ContextBuilder {
	if budget <= 0 {
		budget = 3000
	}
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		enc = nil // fall back to word counting
	}
	return &ContextBuilder{budget: budget, enc: enc}
}

func (b *ContextBuilder) TokenCount(text string) int {
	if b.enc != nil {
		return len(b.enc.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

func (b *ContextBuilder) Build(candidates []types.FusedCandidate) BuiltContext {
	var sb strings.Builder
	var included []types.FusedCandidate
	var pages []int
	seenPages := make(map[int]bool)
	used := 0

	for _, cand := range candidates {
		segment := fmt.Sprintf("[Page %d] %s\n\n", cand.Page, cand.FullText)
		n := b.TokenCount(segment)
		if used+n > b.budget {
			// Excluded whole; a smaller lower-ranked candidate may
			// still fit.
			continue
		}
		sb.WriteString(segment)
		used += n
		included = append(included, cand)
		if !seenPages[cand.Page] {
			seenPages[cand.Page] = true
			pages = append(pages, cand.Page)
		}
	}

	return BuiltContext{
		Text:     strings.TrimSpace(sb.String()),
		Included: included,
		Pages:    pages,
	}
}
