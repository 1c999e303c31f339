package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lorebase/lorebase/internal/model"
	"github.com/lorebase/lorebase/internal/vectorcache"
)

type fakePrefsStore struct {
	prefs model.ChatPreferences
}

func (f *fakePrefsStore) Get(ctx context.Context, userID string) (*model.ChatPreferences, error) {
	p := f.prefs
	p.UserID = userID
	return &p, nil
}

type fakeWindowStore struct {
	size int
}

func (f *fakeWindowStore) GetSize(ctx context.Context, modelName string) (int, error) {
	return f.size, nil
}

type fakeChunkStore struct {
	chunks []model.ChunkWithDocument
}

func (f *fakeChunkStore) ListSelectedWithDocument(ctx context.Context, userID string) ([]model.ChunkWithDocument, error) {
	return f.chunks, nil
}

type countingEmbedder struct {
	calls  int
	vector []float32
}

func (f *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.calls++
	return f.vector, nil
}

type fakeMessageChunkStore struct {
	saved   []model.MessageChunk
	saveErr error
}

func (f *fakeMessageChunkStore) SaveAll(ctx context.Context, items []model.MessageChunk) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, items...)
	return nil
}

func (f *fakeMessageChunkStore) ListByMessage(ctx context.Context, messageID string) ([]model.MessageChunk, error) {
	return f.saved, nil
}

func staticVectorSource(vectors map[string][]float32) *vectorcache.Cache {
	return vectorcache.New(vectorcache.LoaderFunc(
		func(ctx context.Context, userID string) (map[string][]float32, error) {
			return vectors, nil
		}), 0)
}

func TestAugmentQueryDisabledSkipsEmbedding(t *testing.T) {
	embedder := &countingEmbedder{}
	svc := NewRetrievalService(
		&fakePrefsStore{prefs: model.ChatPreferences{Model: "gpt-4", KnowledgeQueryMode: false}},
		&fakeWindowStore{size: 8192},
		&fakeChunkStore{},
		embedder,
		staticVectorSource(nil),
		&fakeMessageChunkStore{},
	)

	got, associations, err := svc.AugmentQuery(context.Background(), "u1", "m1", "hello there")
	require.NoError(t, err)
	require.Equal(t, "hello there", got)
	require.Empty(t, associations)
	require.Zero(t, embedder.calls)
}

func TestAugmentQueryWrapsAndRecordsAssociations(t *testing.T) {
	chunks := []model.ChunkWithDocument{
		{ID: "c1", Title: "Atlas", Pages: "2", Content: "mountains", Tokens: 5},
		{ID: "c2", Title: "Atlas", Pages: "3", Content: "rivers", Tokens: 5},
	}
	embedder := &countingEmbedder{vector: []float32{1, 0}}
	messages := &fakeMessageChunkStore{}
	svc := NewRetrievalService(
		&fakePrefsStore{prefs: model.ChatPreferences{Model: "gpt-4", KnowledgeContextPct: 50, KnowledgeQueryMode: true}},
		&fakeWindowStore{size: 100},
		&fakeChunkStore{chunks: chunks},
		embedder,
		staticVectorSource(map[string][]float32{
			"c1": {2, 0},
			"c2": {1, 0},
		}),
		messages,
	)

	got, associations, err := svc.AugmentQuery(context.Background(), "u1", "m1", "where are the rivers?")
	require.NoError(t, err)
	require.Equal(t, 1, embedder.calls)
	require.True(t, strings.HasPrefix(got, contextPreface))
	require.True(t, strings.HasSuffix(got, "where are the rivers?"))
	require.Len(t, associations, 2)
	require.Equal(t, "c1", associations[0].ChunkID)
	require.Equal(t, 1, associations[0].Rank)
	require.Equal(t, associations, messages.saved)
}

func TestAugmentQueryPropagatesAssociationError(t *testing.T) {
	wantErr := errors.New("insert failed")
	chunks := []model.ChunkWithDocument{
		{ID: "c1", Title: "Atlas", Content: "mountains", Tokens: 5},
	}
	svc := NewRetrievalService(
		&fakePrefsStore{prefs: model.ChatPreferences{Model: "gpt-4", KnowledgeContextPct: 50, KnowledgeQueryMode: true}},
		&fakeWindowStore{size: 100},
		&fakeChunkStore{chunks: chunks},
		&countingEmbedder{vector: []float32{1, 0}},
		staticVectorSource(map[string][]float32{"c1": {2, 0}}),
		&fakeMessageChunkStore{saveErr: wantErr},
	)

	_, _, err := svc.AugmentQuery(context.Background(), "u1", "m1", "where are the rivers?")
	require.ErrorIs(t, err, wantErr)
}

func chunkMap(chunks ...model.ChunkWithDocument) map[string]model.ChunkWithDocument {
	m := make(map[string]model.ChunkWithDocument, len(chunks))
	for _, c := range chunks {
		m[c.ID] = c
	}
	return m
}

func TestSelectGreedyPrefixStopsAtFirstOverflow(t *testing.T) {
	byID := chunkMap(
		model.ChunkWithDocument{ID: "a", Tokens: 100},
		model.ChunkWithDocument{ID: "b", Tokens: 50},
		model.ChunkWithDocument{ID: "c", Tokens: 200},
		model.ChunkWithDocument{ID: "d", Tokens: 10},
	)
	ranked := []vectorcache.Ranked{
		{ID: "a", Rank: 1},
		{ID: "c", Rank: 2},
		{ID: "b", Rank: 3},
		{ID: "d", Rank: 4},
	}

	// "a" fits, "c" overflows; "b" and "d" would fit but are never reached.
	sections := selectGreedyPrefix(ranked, byID, 140)
	require.Len(t, sections, 1)
	require.Equal(t, "a", sections[0].Chunk.ID)
	require.Equal(t, 1, sections[0].Rank)
}

func TestSelectGreedyPrefixTakesAllWithinBudget(t *testing.T) {
	byID := chunkMap(
		model.ChunkWithDocument{ID: "a", Tokens: 100},
		model.ChunkWithDocument{ID: "b", Tokens: 50},
		model.ChunkWithDocument{ID: "c", Tokens: 40},
	)
	ranked := []vectorcache.Ranked{
		{ID: "a", Rank: 1},
		{ID: "b", Rank: 2},
		{ID: "c", Rank: 3},
	}

	sections := selectGreedyPrefix(ranked, byID, 190)
	require.Len(t, sections, 3)
	require.Equal(t, []string{"a", "b", "c"}, []string{
		sections[0].Chunk.ID, sections[1].Chunk.ID, sections[2].Chunk.ID,
	})
}

func TestSelectGreedyPrefixExactFit(t *testing.T) {
	byID := chunkMap(
		model.ChunkWithDocument{ID: "a", Tokens: 100},
		model.ChunkWithDocument{ID: "b", Tokens: 40},
	)
	ranked := []vectorcache.Ranked{
		{ID: "a", Rank: 1},
		{ID: "b", Rank: 2},
	}

	// A chunk landing exactly on the budget is still selected.
	sections := selectGreedyPrefix(ranked, byID, 140)
	require.Len(t, sections, 2)
}

func TestSelectGreedyPrefixEmptyRanking(t *testing.T) {
	sections := selectGreedyPrefix(nil, nil, 1000)
	require.Empty(t, sections)
}

func TestComposeKnowledgeContext(t *testing.T) {
	sections := []RelevantSection{
		{
			Chunk: model.ChunkWithDocument{
				ID:      "a",
				Title:   "Field Guide",
				Author:  "Jane Roe",
				Pages:   "4-6",
				Content: "alpha beta",
			},
			Rank: 1,
		},
		{
			Chunk: model.ChunkWithDocument{
				ID:      "b",
				Content: "gamma delta",
			},
			Rank: 2,
		},
	}

	got := composeKnowledgeContext(sections, "what is alpha?")
	require.True(t, strings.HasPrefix(got, contextPreface))
	require.True(t, strings.HasSuffix(got, contextEnding+"what is alpha?"))
	require.Contains(t, got, "Title: Field Guide\nAuthor: Jane Roe\nPage: 4-6\nContent: alpha beta\n\n")
	// Empty metadata fields are omitted entirely.
	require.Contains(t, got, "Content: gamma delta\n\n")
	require.NotContains(t, got, "Title: \n")
	require.NotContains(t, got, "Author: \n")
}

func TestComposeKnowledgeContextNoSections(t *testing.T) {
	got := composeKnowledgeContext(nil, "plain question")
	require.Equal(t, contextPreface+contextEnding+"plain question", got)
}
