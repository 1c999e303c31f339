package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/lorebase/lorebase/internal/extract"
	"github.com/lorebase/lorebase/internal/filestore"
	"github.com/lorebase/lorebase/internal/model"
	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
	"github.com/lorebase/lorebase/internal/segment"
	"github.com/lorebase/lorebase/internal/tokenizer"
	"github.com/lorebase/lorebase/internal/vector"
)

type documentStore interface {
	CreateWithChunks(ctx context.Context, doc *model.Document, chunks []model.DocumentChunk, embeddings []model.DocumentEmbedding) error
	ListByUser(ctx context.Context, userID string) ([]model.Document, error)
	Get(ctx context.Context, userID, docID string) (*model.Document, error)
	UpdateMeta(ctx context.Context, userID, docID, title, author string, mtime int64) error
	SetSelected(ctx context.Context, userID, docID string, selected bool, mtime int64) error
	Delete(ctx context.Context, userID, docID string) error
}

type documentChunkStore interface {
	ListByDocument(ctx context.Context, docID string) ([]model.DocumentChunk, error)
}

type embeddingStore interface {
	SaveForDocument(ctx context.Context, embeddings []model.DocumentEmbedding) error
}

type documentEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

type vectorInvalidator interface {
	Invalidate(userID string)
}

// IngestService owns the document intake pipeline: extract paginated text,
// segment it into token-budgeted chunks, embed every chunk and persist the
// whole graph atomically.
type IngestService struct {
	docs           documentStore
	chunks         documentChunkStore
	embeddings     embeddingStore
	client         documentEmbedder
	counter        tokenizer.Counter
	store          filestore.Store
	cache          vectorInvalidator
	maxChunkTokens int
}

func NewIngestService(docs documentStore, chunks documentChunkStore, embeddings embeddingStore, client documentEmbedder, counter tokenizer.Counter, store filestore.Store, cache vectorInvalidator, maxChunkTokens int) *IngestService {
	if maxChunkTokens <= 0 {
		maxChunkTokens = segment.DefaultMaxTokens
	}
	return &IngestService{
		docs:           docs,
		chunks:         chunks,
		embeddings:     embeddings,
		client:         client,
		counter:        counter,
		store:          store,
		cache:          cache,
		maxChunkTokens: maxChunkTokens,
	}
}

type IngestInput struct {
	// Path is the uploaded file saved to a temp location; the handler owns
	// its cleanup.
	Path     string
	FileName string
	Title    string
	Author   string
}

// Ingest runs the full pipeline for one uploaded file. Chunks and embeddings
// land in one transaction with the document row; a failure at any stage
// leaves no partial state behind. The original file is archived afterwards
// on a best-effort basis.
func (s *IngestService) Ingest(ctx context.Context, userID string, input IngestInput) (*model.Document, error) {
	pages, err := extract.Pages(input.Path)
	if err != nil {
		return nil, err
	}
	result := segment.Split(pages, s.maxChunkTokens, s.counter)
	if len(result.Chunks) == 0 {
		return nil, appErr.ErrEmptyDocument
	}

	texts := make([]string, len(result.Chunks))
	for i, chunk := range result.Chunks {
		texts[i] = chunk.Content
	}
	vectors, err := s.client.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed document chunks: %w", err)
	}
	if len(vectors) != len(result.Chunks) {
		return nil, fmt.Errorf("%w: %d chunks, %d vectors",
			appErr.ErrChunkEmbeddingMismatch, len(result.Chunks), len(vectors))
	}

	now := time.Now().Unix()
	title := input.Title
	if title == "" {
		title = input.FileName
	}
	doc := &model.Document{
		ID:          newID(),
		UserID:      userID,
		Title:       title,
		Author:      input.Author,
		FileName:    input.FileName,
		TotalTokens: result.TotalTokens,
		PageCount:   strconv.Itoa(len(pages)),
		Selected:    true,
		Ctime:       now,
		Mtime:       now,
	}
	chunks := make([]model.DocumentChunk, len(result.Chunks))
	embeddings := make([]model.DocumentEmbedding, len(result.Chunks))
	for i, chunk := range result.Chunks {
		chunks[i] = model.DocumentChunk{
			ID:         newID(),
			DocumentID: doc.ID,
			ChunkIndex: i,
			Content:    chunk.Content,
			Tokens:     chunk.Tokens,
			Pages:      segment.PageLabel(chunk.Pages),
		}
		embeddings[i] = model.DocumentEmbedding{
			ChunkID:   chunks[i].ID,
			UserID:    userID,
			Embedding: vector.Encode(vectors[i]),
			ModelName: s.client.ModelName(),
			Ctime:     now,
		}
	}
	if err := s.docs.CreateWithChunks(ctx, doc, chunks, embeddings); err != nil {
		return nil, err
	}

	s.archiveOriginal(ctx, userID, doc.ID, input)
	s.cache.Invalidate(userID)
	logutil.GetLogger(ctx).Info("document ingested",
		zap.String("doc_id", doc.ID),
		zap.Int("chunks", len(chunks)),
		zap.Int("total_tokens", result.TotalTokens))
	return doc, nil
}

// archiveOriginal keeps the raw upload around for later re-processing. The
// document is already committed, so archive failures are logged, not fatal.
func (s *IngestService) archiveOriginal(ctx context.Context, userID, docID string, input IngestInput) {
	if s.store == nil {
		return
	}
	f, err := os.Open(input.Path)
	if err != nil {
		logutil.GetLogger(ctx).Warn("failed to open upload for archive", zap.Error(err))
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		logutil.GetLogger(ctx).Warn("failed to stat upload for archive", zap.Error(err))
		return
	}
	key := StorageKey(userID, docID, input.FileName)
	if err := s.store.Save(ctx, key, f, info.Size()); err != nil {
		logutil.GetLogger(ctx).Warn("failed to archive upload",
			zap.String("key", key), zap.Error(err))
	}
}

// StorageKey is where a document's original upload lives in the file store.
func StorageKey(userID, docID, fileName string) string {
	return path.Join("documents", userID, docID, fileName)
}

// OpenOriginal streams the archived upload of a document the user owns. A
// document whose original was never archived reads as not found.
func (s *IngestService) OpenOriginal(ctx context.Context, userID, docID string) (*model.Document, io.ReadCloser, error) {
	doc, err := s.docs.Get(ctx, userID, docID)
	if err != nil {
		return nil, nil, err
	}
	if s.store == nil || doc.FileName == "" {
		return nil, nil, fmt.Errorf("%w: no archived original", appErr.ErrNotFound)
	}
	rc, err := s.store.Open(ctx, StorageKey(userID, docID, doc.FileName))
	if err != nil {
		return nil, nil, fmt.Errorf("open archived upload: %w", err)
	}
	return doc, rc, nil
}

func (s *IngestService) List(ctx context.Context, userID string) ([]model.Document, error) {
	return s.docs.ListByUser(ctx, userID)
}

func (s *IngestService) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	return s.docs.Get(ctx, userID, docID)
}

// Chunks lists a document's chunks in index order, verifying ownership
// first.
func (s *IngestService) Chunks(ctx context.Context, userID, docID string) ([]model.DocumentChunk, error) {
	if _, err := s.docs.Get(ctx, userID, docID); err != nil {
		return nil, err
	}
	return s.chunks.ListByDocument(ctx, docID)
}

func (s *IngestService) UpdateMeta(ctx context.Context, userID, docID, title, author string) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", appErr.ErrInvalid)
	}
	return s.docs.UpdateMeta(ctx, userID, docID, title, author, time.Now().Unix())
}

// SetSelected toggles a document in or out of the retrieval candidate set
// and drops the user's cached vectors so the next query sees the change.
func (s *IngestService) SetSelected(ctx context.Context, userID, docID string, selected bool) error {
	if err := s.docs.SetSelected(ctx, userID, docID, selected, time.Now().Unix()); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

func (s *IngestService) Delete(ctx context.Context, userID, docID string) error {
	if err := s.docs.Delete(ctx, userID, docID); err != nil {
		return err
	}
	s.cache.Invalidate(userID)
	return nil
}

// Reembed regenerates the embeddings of every chunk of one document, used by
// the backfill job when embeddings are missing.
func (s *IngestService) Reembed(ctx context.Context, doc *model.Document) error {
	chunks, err := s.chunks.ListByDocument(ctx, doc.ID)
	if err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := s.client.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	now := time.Now().Unix()
	embeddings := make([]model.DocumentEmbedding, len(chunks))
	for i := range chunks {
		embeddings[i] = model.DocumentEmbedding{
			ChunkID:   chunks[i].ID,
			UserID:    doc.UserID,
			Embedding: vector.Encode(vectors[i]),
			ModelName: s.client.ModelName(),
			Ctime:     now,
		}
	}
	if err := s.embeddings.SaveForDocument(ctx, embeddings); err != nil {
		return err
	}
	s.cache.Invalidate(doc.UserID)
	return nil
}
