package segment

import (
	"sort"
	"strconv"
	"strings"

	"github.com/lorebase/lorebase/internal/extract"
	"github.com/lorebase/lorebase/internal/tokenizer"
)

// DefaultMaxTokens is the chunk token budget used when the caller does not
// override it.
const DefaultMaxTokens = 512

// Chunk is one token-budgeted span of normalized document text together with
// the page numbers its content came from.
type Chunk struct {
	Content string
	Tokens  int
	Pages   []int
}

// Result carries the chunks of one document plus the summed token count.
type Result struct {
	Chunks      []Chunk
	TotalTokens int
}

// Split walks pages in order, accumulating sentences into chunks that stay
// within maxTokens. A sentence that alone exceeds the budget falls back to a
// word-level sub-split; only a single word longer than the whole budget can
// produce an oversized chunk. A chunk's page set spans multiple pages when
// its content crossed a page boundary.
//
// Token counts on the returned chunks are recomputed per final chunk content
// rather than carried over from accumulation, so normalization during
// preprocessing cannot cause drift.
func Split(pages []extract.Page, maxTokens int, counter tokenizer.Counter) Result {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	var chunks []Chunk
	var current []string
	currentTokens := 0
	currentPages := map[int]struct{}{}

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Content: strings.Join(current, " "),
			Pages:   sortedPages(currentPages),
		})
		current = nil
		currentTokens = 0
		currentPages = map[int]struct{}{}
	}

	for _, page := range pages {
		text := Preprocess(page.Text)
		for _, sentence := range SplitSentences(text) {
			sentenceTokens := counter.Count(sentence)

			if sentenceTokens > maxTokens {
				// Oversized sentence: flush what we have, then pack its
				// words into fresh chunks.
				flush()
				currentPages[page.Number] = struct{}{}
				for _, word := range strings.Fields(sentence) {
					wordTokens := counter.Count(word)
					if currentTokens+wordTokens > maxTokens && len(current) > 0 {
						flush()
						currentPages[page.Number] = struct{}{}
					}
					current = append(current, word)
					currentTokens += wordTokens
				}
				flush()
				continue
			}

			if currentTokens+sentenceTokens > maxTokens {
				flush()
			}
			current = append(current, sentence)
			currentTokens += sentenceTokens
			currentPages[page.Number] = struct{}{}
		}
	}
	flush()

	result := Result{Chunks: chunks}
	for i := range result.Chunks {
		result.Chunks[i].Tokens = counter.Count(result.Chunks[i].Content)
		result.TotalTokens += result.Chunks[i].Tokens
	}
	return result
}

func sortedPages(set map[int]struct{}) []int {
	pages := make([]int, 0, len(set))
	for page := range set {
		pages = append(pages, page)
	}
	sort.Ints(pages)
	return pages
}

// PageLabel renders a chunk's page set the way it is stored and shown:
// "4" for one page, "4-6" for a span.
func PageLabel(pages []int) string {
	if len(pages) == 0 {
		return ""
	}
	if len(pages) == 1 {
		return strconv.Itoa(pages[0])
	}
	return strconv.Itoa(pages[0]) + "-" + strconv.Itoa(pages[len(pages)-1])
}
