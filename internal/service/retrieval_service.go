package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lorebase/lorebase/internal/ai"
	"github.com/lorebase/lorebase/internal/model"
	"github.com/lorebase/lorebase/internal/vectorcache"
)

const (
	contextPreface = "The following text excerpts are provided for context. Use this information to critically analyze " +
		"and fully answer the user query that follows. Cite the excerpts as needed.\n" +
		"=== Begin Knowledge Context ===\n"
	contextEnding = "=== End Knowledge Context ===\n" +
		"Provide your authoritative and nuanced answer using the text excerpts above. " +
		"Ensure comprehensive attention to detail and incorporate the specific text excerpts in your response. " +
		"Omit disclaimers, apologies, and AI self-references. Provide unbiased, holistic guidance and analysis. " +
		"Now, answer the user question below based on the context provided:\n"
)

type preferencesStore interface {
	Get(ctx context.Context, userID string) (*model.ChatPreferences, error)
}

type contextWindowStore interface {
	GetSize(ctx context.Context, modelName string) (int, error)
}

type chunkStore interface {
	ListSelectedWithDocument(ctx context.Context, userID string) ([]model.ChunkWithDocument, error)
}

type queryEmbedder interface {
	Embed(ctx context.Context, text string, taskType string) ([]float32, error)
}

type vectorSource interface {
	GetOrLoad(ctx context.Context, userID string) (*vectorcache.UserVectors, error)
}

type messageChunkStore interface {
	SaveAll(ctx context.Context, items []model.MessageChunk) error
	ListByMessage(ctx context.Context, messageID string) ([]model.MessageChunk, error)
}

// RetrievalService answers "which stored chunks are relevant to this query,
// and how do they wrap it" for the chat path.
type RetrievalService struct {
	prefs         preferencesStore
	windows       contextWindowStore
	chunks        chunkStore
	client        queryEmbedder
	cache         vectorSource
	messageChunks messageChunkStore
}

func NewRetrievalService(prefs preferencesStore, windows contextWindowStore, chunks chunkStore, client queryEmbedder, cache vectorSource, messageChunks messageChunkStore) *RetrievalService {
	return &RetrievalService{
		prefs:         prefs,
		windows:       windows,
		chunks:        chunks,
		client:        client,
		cache:         cache,
		messageChunks: messageChunks,
	}
}

// RelevantSection is one chunk chosen for the knowledge context, with its
// similarity rank.
type RelevantSection struct {
	Chunk model.ChunkWithDocument
	Rank  int
}

// FindRelevantSections ranks the user's selected-document chunks against the
// query vector and keeps a greedy prefix of the ranking: chunks are taken in
// rank order until the first one that would overflow the token budget, and
// selection stops there even if a later, smaller chunk would still fit.
func (s *RetrievalService) FindRelevantSections(ctx context.Context, userID string, queryVec []float32, prefs *model.ChatPreferences) ([]RelevantSection, error) {
	windowSize, err := s.windows.GetSize(ctx, prefs.Model)
	if err != nil {
		return nil, fmt.Errorf("context window for model %s: %w", prefs.Model, err)
	}
	budget := float64(prefs.KnowledgeContextPct) / 100.0 * float64(windowSize)

	candidates, err := s.chunks.ListSelectedWithDocument(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	byID := make(map[string]model.ChunkWithDocument, len(candidates))
	subsetIDs := make([]string, len(candidates))
	for i, c := range candidates {
		byID[c.ID] = c
		subsetIDs[i] = c.ID
	}

	vectors, err := s.cache.GetOrLoad(ctx, userID)
	if err != nil {
		return nil, err
	}
	ranked := vectors.MIPSNaive(queryVec, subsetIDs)

	sections := selectGreedyPrefix(ranked, byID, budget)
	logutil.GetLogger(ctx).Debug("selected knowledge context",
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", len(sections)),
		zap.Float64("budget_tokens", budget))
	return sections, nil
}

// AugmentQuery wraps the user's query with retrieved knowledge context when
// the user has knowledge retrieval enabled. When it is disabled the query
// passes through untouched and no embedding call is made. When messageID is
// non-empty the chunk associations are recorded against that message.
func (s *RetrievalService) AugmentQuery(ctx context.Context, userID, messageID, query string) (string, []model.MessageChunk, error) {
	prefs, err := s.prefs.Get(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	if !prefs.KnowledgeQueryMode {
		return query, nil, nil
	}

	queryVec, err := s.client.Embed(ctx, query, ai.TaskTypeQuery)
	if err != nil {
		return "", nil, fmt.Errorf("embed query: %w", err)
	}
	sections, err := s.FindRelevantSections(ctx, userID, queryVec, prefs)
	if err != nil {
		return "", nil, err
	}

	augmented := composeKnowledgeContext(sections, query)
	associations := make([]model.MessageChunk, 0, len(sections))
	for _, section := range sections {
		associations = append(associations, model.MessageChunk{
			MessageID: messageID,
			ChunkID:   section.Chunk.ID,
			Rank:      section.Rank,
		})
	}

	if messageID != "" && len(associations) > 0 {
		if err := s.messageChunks.SaveAll(ctx, associations); err != nil {
			return "", nil, fmt.Errorf("record message chunk associations: %w", err)
		}
	}
	return augmented, associations, nil
}

// selectGreedyPrefix walks the ranking in order and keeps chunks until the
// first one that would push the running total past the budget. Selection
// stops at that point; later, smaller chunks are never considered.
func selectGreedyPrefix(ranked []vectorcache.Ranked, byID map[string]model.ChunkWithDocument, budget float64) []RelevantSection {
	var sections []RelevantSection
	currentTokens := 0.0
	for _, r := range ranked {
		chunk, ok := byID[r.ID]
		if !ok || currentTokens+float64(chunk.Tokens) > budget {
			break
		}
		sections = append(sections, RelevantSection{Chunk: chunk, Rank: r.Rank})
		currentTokens += float64(chunk.Tokens)
	}
	return sections
}

// composeKnowledgeContext wraps the query between the knowledge preface and
// ending, with one Title/Author/Page/Content block per section. Empty
// metadata fields are omitted from their block.
func composeKnowledgeContext(sections []RelevantSection, query string) string {
	var sb strings.Builder
	sb.WriteString(contextPreface)
	for _, section := range sections {
		var parts []string
		if section.Chunk.Title != "" {
			parts = append(parts, "Title: "+section.Chunk.Title)
		}
		if section.Chunk.Author != "" {
			parts = append(parts, "Author: "+section.Chunk.Author)
		}
		if section.Chunk.Pages != "" {
			parts = append(parts, "Page: "+section.Chunk.Pages)
		}
		parts = append(parts, "Content: "+section.Chunk.Content)
		sb.WriteString(strings.Join(parts, "\n"))
		sb.WriteString("\n\n")
	}
	sb.WriteString(contextEnding)
	sb.WriteString(query)
	return sb.String()
}

// Associations returns the chunks that were injected into a message's
// context, in rank order.
func (s *RetrievalService) Associations(ctx context.Context, messageID string) ([]model.MessageChunk, error) {
	return s.messageChunks.ListByMessage(ctx, messageID)
}
