package internal

import (
	"regexp"
	"sort"
	"strings"

	"manualrag/types"

	"github.com/google/uuid"
	"github.com/pkoukk/tiktoken-go"
)

// Chunker splits extracted page text into overlapping, page-tagged
// chunks sized for the embedding model and the generation context.
// Boundaries are deterministic: identical input reproduces identical
// chunk texts, page tags and order indexes.
type Chunker struct {
	maxTokens    int
	overlapWords int
	enc          *tiktoken.Tiktoken
	sentenceRe   *regexp.Regexp
}

type sentence struct {
	text  string
	page  int
	words int
}

func NewChunker(maxTokens, overlapWords int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = 250
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	// Without the encoding data the counter falls back to whitespace
	// words, which only makes chunks smaller than the token budget.
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		enc = nil
	}
	return &Chunker{
		maxTokens:    maxTokens,
		overlapWords: overlapWords,
		enc:          enc,
		sentenceRe:   regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?]+)`),
	}
}

func (c *Chunker) TokenCount(text string) int {
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return len(strings.Fields(text))
}

// Chunk turns per-page text into an ordered chunk sequence without
// embeddings. Chunks pack whole sentences up to the token budget; a
// fixed word overlap is carried across each boundary so a cited fact
// is never severed. A chunk spanning pages is tagged with the page
// contributing the majority of its words.
func (c *Chunker) Chunk(manualID string, pages []types.PageText) []types.Chunk {
	stream := c.sentences(pages)

	var chunks []types.Chunk
	var cur []sentence
	curTokens := 0
	carried := 0 // leading sentences in cur that are overlap from the previous chunk

	flush := func() {
		if len(cur) == carried {
			return
		}
		texts := make([]string, len(cur))
		pageWords := make(map[int]int)
		for i, s := range cur {
			texts[i] = s.text
			pageWords[s.page] += s.words
		}
		text := strings.Join(texts, " ")
		chunks = append(chunks, types.Chunk{
			ID:         uuid.New(),
			ManualID:   manualID,
			Page:       majorityPage(pageWords),
			OrderIndex: len(chunks),
			Text:       text,
		})

		cur = nil
		curTokens = 0
		carried = 0
		if c.overlapWords > 0 {
			if tail := tailWords(text, c.overlapWords); tail != "" {
				lastPage := chunks[len(chunks)-1].Page
				cur = []sentence{{text: tail, page: lastPage, words: len(strings.Fields(tail))}}
				curTokens = c.TokenCount(tail)
				carried = 1
			}
		}
	}

	for _, s := range stream {
		n := c.TokenCount(s.text)
		if curTokens+n > c.maxTokens && len(cur) > carried {
			flush()
		}
		cur = append(cur, s)
		curTokens += n
	}
	flush()

	return chunks
}

// sentences flattens pages into a sentence stream, splitting any
// sentence that alone exceeds the token budget into word windows.
func (c *Chunker) sentences(pages []types.PageText) []sentence {
	var stream []sentence
	for _, p := range pages {
		page := p.Page
		if page < 1 {
			page = 1
		}
		for _, para := range strings.Split(p.Text, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			for _, text := range c.splitSentences(para) {
				if c.TokenCount(text) > c.maxTokens {
					for _, piece := range c.splitByBudget(text) {
						stream = append(stream, sentence{text: piece, page: page, words: len(strings.Fields(piece))})
					}
					continue
				}
				stream = append(stream, sentence{text: text, page: page, words: len(strings.Fields(text))})
			}
		}
	}
	return stream
}

func (c *Chunker) splitSentences(para string) []string {
	idxs := c.sentenceRe.FindAllStringIndex(para, -1)
	var out []string
	end := 0
	for _, ix := range idxs {
		if s := strings.TrimSpace(para[ix[0]:ix[1]]); s != "" {
			out = append(out, s)
		}
		end = ix[1]
	}
	// Trailing text without sentence punctuation is still content.
	if rest := strings.TrimSpace(para[end:]); rest != "" {
		out = append(out, rest)
	}
	if len(out) == 0 {
		out = append(out, para)
	}
	return out
}

func (c *Chunker) splitByBudget(text string) []string {
	words := strings.Fields(text)
	var pieces []string
	var cur []string
	curTokens := 0
	for _, w := range words {
		n := c.TokenCount(w)
		if curTokens+n > c.maxTokens && len(cur) > 0 {
			pieces = append(pieces, strings.Join(cur, " "))
			cur = nil
			curTokens = 0
		}
		cur = append(cur, w)
		curTokens += n
	}
	if len(cur) > 0 {
		pieces = append(pieces, strings.Join(cur, " "))
	}
	return pieces
}

func tailWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return ""
	}
	return strings.Join(words[len(words)-n:], " ")
}

func majorityPage(pageWords map[int]int) int {
	pages := make([]int, 0, len(pageWords))
	for p := range pageWords {
		pages = append(pages, p)
	}
	sort.Ints(pages)
	best, bestWords := 0, -1
	for _, p := range pages {
		if pageWords[p] > bestWords {
			best, bestWords = p, pageWords[p]
		}
	}
	return best
}
