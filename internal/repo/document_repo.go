package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/didi/gendry/builder"
	"github.com/jmoiron/sqlx"

	"github.com/lorebase/lorebase/internal/model"
	"github.com/lorebase/lorebase/internal/pkg/dbutil"
	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
)

type DocumentRepo struct {
	db *sqlx.DB
}

func NewDocumentRepo(db *sqlx.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

// CreateWithChunks persists a document together with all of its chunks and
// their embeddings in one transaction. Either the whole graph lands or none
// of it does; there is no partial commit of a subset of a document's chunk
// embeddings.
func (r *DocumentRepo) CreateWithChunks(ctx context.Context, doc *model.Document, chunks []model.DocumentChunk, embeddings []model.DocumentEmbedding) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", appErr.ErrChunkEmbeddingMismatch, len(chunks), len(embeddings))
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const insertDoc = `
		INSERT INTO documents (id, user_id, title, author, file_name, total_tokens, page_count, selected, ctime, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := tx.ExecContext(ctx, insertDoc,
		doc.ID, doc.UserID, doc.Title, doc.Author, doc.FileName, doc.TotalTokens, doc.PageCount, doc.Selected, doc.Ctime, doc.Mtime,
	); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}

	const insertChunk = `
		INSERT INTO document_chunks (id, document_id, chunk_index, content, tokens, pages)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	const insertEmbedding = `
		INSERT INTO document_embeddings (chunk_id, user_id, embedding, model_name, ctime)
		VALUES ($1, $2, $3, $4, $5)
	`
	for i := range chunks {
		chunk := &chunks[i]
		if _, err := tx.ExecContext(ctx, insertChunk,
			chunk.ID, chunk.DocumentID, chunk.ChunkIndex, chunk.Content, chunk.Tokens, chunk.Pages,
		); err != nil {
			return fmt.Errorf("insert chunk %d: %w", chunk.ChunkIndex, err)
		}
		emb := &embeddings[i]
		if _, err := tx.ExecContext(ctx, insertEmbedding,
			emb.ChunkID, emb.UserID, emb.Embedding, emb.ModelName, emb.Ctime,
		); err != nil {
			return fmt.Errorf("insert embedding for chunk %d: %w", chunk.ChunkIndex, err)
		}
	}
	return tx.Commit()
}

func (r *DocumentRepo) Get(ctx context.Context, userID, docID string) (*model.Document, error) {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	query, args, err := builder.BuildSelect("documents", where,
		[]string{"id", "user_id", "title", "author", "file_name", "total_tokens", "page_count", "selected", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	query, args = dbutil.Finalize(query, args)
	var doc model.Document
	if err := r.db.GetContext(ctx, &doc, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErr.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

func (r *DocumentRepo) ListByUser(ctx context.Context, userID string) ([]model.Document, error) {
	where := map[string]interface{}{
		"user_id":  userID,
		"_orderby": "ctime desc",
	}
	query, args, err := builder.BuildSelect("documents", where,
		[]string{"id", "user_id", "title", "author", "file_name", "total_tokens", "page_count", "selected", "ctime", "mtime"})
	if err != nil {
		return nil, err
	}
	query, args = dbutil.Finalize(query, args)
	var docs []model.Document
	if err := r.db.SelectContext(ctx, &docs, query, args...); err != nil {
		return nil, err
	}
	return docs, nil
}

func (r *DocumentRepo) UpdateMeta(ctx context.Context, userID, docID, title, author string, mtime int64) error {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	update := map[string]interface{}{
		"title":  title,
		"author": author,
		"mtime":  mtime,
	}
	query, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	query, args = dbutil.Finalize(query, args)
	return r.execExpectingRow(ctx, query, args)
}

func (r *DocumentRepo) SetSelected(ctx context.Context, userID, docID string, selected bool, mtime int64) error {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	update := map[string]interface{}{
		"selected": selected,
		"mtime":    mtime,
	}
	query, args, err := builder.BuildUpdate("documents", where, update)
	if err != nil {
		return err
	}
	query, args = dbutil.Finalize(query, args)
	return r.execExpectingRow(ctx, query, args)
}

// Delete removes the document; chunks and embeddings cascade away with it.
func (r *DocumentRepo) Delete(ctx context.Context, userID, docID string) error {
	where := map[string]interface{}{
		"id":      docID,
		"user_id": userID,
	}
	query, args, err := builder.BuildDelete("documents", where)
	if err != nil {
		return err
	}
	query, args = dbutil.Finalize(query, args)
	return r.execExpectingRow(ctx, query, args)
}

func (r *DocumentRepo) execExpectingRow(ctx context.Context, query string, args []interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}
