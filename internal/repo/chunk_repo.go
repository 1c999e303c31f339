package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/lorebase/lorebase/internal/model"
)

type ChunkRepo struct {
	db *sqlx.DB
}

func NewChunkRepo(db *sqlx.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

func (r *ChunkRepo) ListByDocument(ctx context.Context, docID string) ([]model.DocumentChunk, error) {
	const query = `
		SELECT id, document_id, chunk_index, content, tokens, pages
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index
	`
	var chunks []model.DocumentChunk
	if err := r.db.SelectContext(ctx, &chunks, query, docID); err != nil {
		return nil, err
	}
	return chunks, nil
}

// ListSelectedWithDocument returns the chunks of the user's currently
// selected documents joined with their parent document's title and author,
// in document creation then chunk order. This is the retrieval candidate
// set.
func (r *ChunkRepo) ListSelectedWithDocument(ctx context.Context, userID string) ([]model.ChunkWithDocument, error) {
	const query = `
		SELECT c.id, d.title, d.author, c.pages, c.content, c.tokens
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.user_id = $1 AND d.selected = TRUE
		ORDER BY d.ctime, c.chunk_index
	`
	var chunks []model.ChunkWithDocument
	if err := r.db.SelectContext(ctx, &chunks, query, userID); err != nil {
		return nil, err
	}
	return chunks, nil
}
