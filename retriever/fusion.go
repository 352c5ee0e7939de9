package retriever

import (
	"sort"
	"strings"

	"manualrag/types"
)

const snippetRunes = 280

type pageAgg struct {
	page      int
	bestVec   float64
	bestText  float64
	winner    types.RetrievalHit
	winScore  float64
	winVector bool
	hasWinner bool
}

// Fuse merges two backend result sets into one ranked candidate list.
// Scores are min-max normalized per backend first: the backends are
// not numerically comparable otherwise. The page is the unit of
// deduplication; a page's fused score is the weighted sum of its best
// normalized score per side, 0 for a side that never returned it.
// Ordering is deterministic: fused score descending, page ascending on
// ties. Output length is at most k.
func Fuse(vecHits, txtHits []types.RetrievalHit, vectorWeight, textWeight float64, k int) []types.FusedCandidate {
	vecNorm := normalize(vecHits)
	txtNorm := normalize(txtHits)

	pages := make(map[int]*pageAgg)
	get := func(page int) *pageAgg {
		agg, ok := pages[page]
		if !ok {
			agg = &pageAgg{page: page}
			pages[page] = agg
		}
		return agg
	}

	// Hit slices are walked in backend order so equal scores resolve
	// the same way on every call.
	for i, h := range vecHits {
		agg := get(h.Page)
		if vecNorm[i] > agg.bestVec {
			agg.bestVec = vecNorm[i]
		}
		agg.updateWinner(h, vecNorm[i], true)
	}
	for i, h := range txtHits {
		agg := get(h.Page)
		if txtNorm[i] > agg.bestText {
			agg.bestText = txtNorm[i]
		}
		agg.updateWinner(h, txtNorm[i], false)
	}

	candidates := make([]types.FusedCandidate, 0, len(pages))
	for _, agg := range pages {
		candidates = append(candidates, types.FusedCandidate{
			Page:     agg.page,
			Score:    vectorWeight*agg.bestVec + textWeight*agg.bestText,
			Snippet:  snippet(agg.winner.Text),
			FullText: agg.winner.Text,
			ChunkID:  agg.winner.ChunkID,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Page < candidates[j].Page
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// updateWinner keeps the chunk whose text represents the page: highest
// normalized score, vector side preferred on an exact tie.
func (agg *pageAgg) updateWinner(h types.RetrievalHit, score float64, vector bool) {
	if !agg.hasWinner || score > agg.winScore || (score == agg.winScore && vector && !agg.winVector) {
		agg.winner = h
		agg.winScore = score
		agg.winVector = vector
		agg.hasWinner = true
	}
}

// normalize maps a backend's scores onto [0,1] min-max over the
// returned set. A set with a single score (or all equal) maps to 1.0.
func normalize(hits []types.RetrievalHit) []float64 {
	norm := make([]float64, len(hits))
	if len(hits) == 0 {
		return norm
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < lo {
			lo = h.Score
		}
		if h.Score > hi {
			hi = h.Score
		}
	}
	for i, h := range hits {
		if hi == lo {
			norm[i] = 1.0
			continue
		}
		norm[i] = (h.Score - lo) / (hi - lo)
	}
	return norm
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "…"
}
