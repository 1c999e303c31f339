package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lorebase/lorebase/internal/filestore"
	"github.com/lorebase/lorebase/internal/model"
	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
	"github.com/lorebase/lorebase/internal/tokenizer"
)

type fakeDocumentStore struct {
	created    *model.Document
	chunks     []model.DocumentChunk
	embeddings []model.DocumentEmbedding
	createErr  error
}

func (f *fakeDocumentStore) CreateWithChunks(ctx context.Context, doc *model.Document, chunks []model.DocumentChunk, embeddings []model.DocumentEmbedding) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = doc
	f.chunks = chunks
	f.embeddings = embeddings
	return nil
}

func (f *fakeDocumentStore) ListByUser(ctx context.Context, userID string) ([]model.Document, error) {
	if f.created == nil || f.created.UserID != userID {
		return nil, nil
	}
	return []model.Document{*f.created}, nil
}

func (f *fakeDocumentStore) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	if f.created != nil && f.created.ID == docID && f.created.UserID == userID {
		return f.created, nil
	}
	return nil, appErr.ErrNotFound
}

func (f *fakeDocumentStore) UpdateMeta(ctx context.Context, userID, docID, title, author string, mtime int64) error {
	return nil
}

func (f *fakeDocumentStore) SetSelected(ctx context.Context, userID, docID string, selected bool, mtime int64) error {
	return nil
}

func (f *fakeDocumentStore) Delete(ctx context.Context, userID, docID string) error {
	return nil
}

type fakeChunkLister struct {
	chunks []model.DocumentChunk
}

func (f *fakeChunkLister) ListByDocument(ctx context.Context, docID string) ([]model.DocumentChunk, error) {
	return f.chunks, nil
}

type fakeEmbeddingStore struct {
	saved []model.DocumentEmbedding
}

func (f *fakeEmbeddingStore) SaveForDocument(ctx context.Context, embeddings []model.DocumentEmbedding) error {
	f.saved = append(f.saved, embeddings...)
	return nil
}

// fakeBatchEmbedder tags each vector with its input index so order is
// checkable, and can fail or return a truncated batch on demand.
type fakeBatchEmbedder struct {
	calls int
	dims  int
	err   error
	short bool
}

func (f *fakeBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, f.dims)
		vec[0] = float32(i)
		out[i] = vec
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

func (f *fakeBatchEmbedder) ModelName() string { return "fake-embed-001" }

type fakeInvalidator struct {
	invalidated []string
}

func (f *fakeInvalidator) Invalidate(userID string) {
	f.invalidated = append(f.invalidated, userID)
}

type fakeFileStore struct {
	saved map[string][]byte
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{saved: map[string][]byte{}}
}

func (f *fakeFileStore) Save(ctx context.Context, key string, r filestore.ReadSeekCloser, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.saved[key] = data
	return nil
}

func (f *fakeFileStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := f.saved[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type ingestFixture struct {
	docs     *fakeDocumentStore
	embedder *fakeBatchEmbedder
	store    *fakeFileStore
	cache    *fakeInvalidator
	svc      *IngestService
}

func newIngestFixture(maxChunkTokens int) *ingestFixture {
	f := &ingestFixture{
		docs:     &fakeDocumentStore{},
		embedder: &fakeBatchEmbedder{dims: 4},
		store:    newFakeFileStore(),
		cache:    &fakeInvalidator{},
	}
	f.svc = NewIngestService(f.docs, &fakeChunkLister{}, &fakeEmbeddingStore{},
		f.embedder, tokenizer.Heuristic{}, f.store, f.cache, maxChunkTokens)
	return f
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIngestAssignsContiguousIndices(t *testing.T) {
	counter := tokenizer.Heuristic{}
	// Six 5-word sentences against a budget of 8 tokens: one sentence per
	// chunk, so the pipeline must emit several chunks.
	content := strings.TrimSpace(strings.Repeat("one two three four five. ", 6))
	path := writeTempFile(t, "notes.txt", content)
	f := newIngestFixture(8)

	doc, err := f.svc.Ingest(context.Background(), "u1", IngestInput{
		Path:     path,
		FileName: "notes.txt",
		Title:    "Notes",
	})
	require.NoError(t, err)
	require.Greater(t, len(f.docs.chunks), 1)
	require.Len(t, f.docs.embeddings, len(f.docs.chunks))
	for i, chunk := range f.docs.chunks {
		require.Equal(t, i, chunk.ChunkIndex)
		require.Equal(t, doc.ID, chunk.DocumentID)
		require.Equal(t, counter.Count(chunk.Content), chunk.Tokens)
		require.Equal(t, chunk.ID, f.docs.embeddings[i].ChunkID)
	}
	require.Equal(t, 1, f.embedder.calls)
	require.Equal(t, "notes.txt", doc.FileName)
	require.True(t, doc.Selected)
	require.Equal(t, []string{"u1"}, f.cache.invalidated)
	require.Contains(t, f.store.saved, StorageKey("u1", doc.ID, "notes.txt"))
}

func TestIngestEmptyDocumentFailsBeforeEmbedding(t *testing.T) {
	path := writeTempFile(t, "empty.txt", "   \n\t ")
	f := newIngestFixture(0)

	_, err := f.svc.Ingest(context.Background(), "u1", IngestInput{Path: path, FileName: "empty.txt"})
	require.ErrorIs(t, err, appErr.ErrEmptyDocument)
	require.Zero(t, f.embedder.calls)
	require.Nil(t, f.docs.created)
}

func TestIngestUnsupportedFileFailsBeforeEmbedding(t *testing.T) {
	path := writeTempFile(t, "image.png", "not text")
	f := newIngestFixture(0)

	_, err := f.svc.Ingest(context.Background(), "u1", IngestInput{Path: path, FileName: "image.png"})
	require.ErrorIs(t, err, appErr.ErrUnsupportedFile)
	require.Zero(t, f.embedder.calls)
	require.Nil(t, f.docs.created)
}

func TestIngestEmbedFailureCreatesNothing(t *testing.T) {
	path := writeTempFile(t, "notes.txt", "some perfectly ordinary text.")
	f := newIngestFixture(0)
	f.embedder.err = errors.New("provider down")

	_, err := f.svc.Ingest(context.Background(), "u1", IngestInput{Path: path, FileName: "notes.txt"})
	require.Error(t, err)
	require.Nil(t, f.docs.created)
	require.Empty(t, f.store.saved)
	require.Empty(t, f.cache.invalidated)
}

func TestIngestRejectsTruncatedEmbeddingBatch(t *testing.T) {
	path := writeTempFile(t, "notes.txt", "some perfectly ordinary text.")
	f := newIngestFixture(0)
	f.embedder.short = true

	_, err := f.svc.Ingest(context.Background(), "u1", IngestInput{Path: path, FileName: "notes.txt"})
	require.ErrorIs(t, err, appErr.ErrChunkEmbeddingMismatch)
	require.Nil(t, f.docs.created)
}

func TestOpenOriginalStreamsArchivedUpload(t *testing.T) {
	content := "the archived original body."
	path := writeTempFile(t, "notes.txt", content)
	f := newIngestFixture(0)

	doc, err := f.svc.Ingest(context.Background(), "u1", IngestInput{Path: path, FileName: "notes.txt"})
	require.NoError(t, err)

	got, rc, err := f.svc.OpenOriginal(context.Background(), "u1", doc.ID)
	require.NoError(t, err)
	defer rc.Close()
	require.Equal(t, doc.ID, got.ID)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, content, string(data))
}

func TestOpenOriginalWithoutArchiveIsNotFound(t *testing.T) {
	f := newIngestFixture(0)
	f.docs.created = &model.Document{ID: "d1", UserID: "u1"}

	_, _, err := f.svc.OpenOriginal(context.Background(), "u1", "d1")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
