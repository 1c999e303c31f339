package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lorebase/lorebase/internal/model"
)

type EmbeddingRepo struct {
	db *sqlx.DB
}

func NewEmbeddingRepo(db *sqlx.DB) *EmbeddingRepo {
	return &EmbeddingRepo{db: db}
}

// ListSelectedByUser returns the stored embedding rows for every chunk of
// the user's currently selected documents. The vector cache loads from this.
func (r *EmbeddingRepo) ListSelectedByUser(ctx context.Context, userID string) ([]model.DocumentEmbedding, error) {
	const query = `
		SELECT e.chunk_id, e.user_id, e.embedding, e.model_name, e.ctime
		FROM document_embeddings e
		JOIN document_chunks c ON c.id = e.chunk_id
		JOIN documents d ON d.id = c.document_id
		WHERE e.user_id = $1 AND d.selected = TRUE
	`
	var rows []model.DocumentEmbedding
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return rows, nil
}

// ListDocumentsMissingEmbeddings finds documents that have chunks without a
// stored embedding, used by the backfill job after partial failures or
// model changes.
func (r *EmbeddingRepo) ListDocumentsMissingEmbeddings(ctx context.Context, limit int) ([]model.Document, error) {
	const query = `
		SELECT DISTINCT d.id, d.user_id, d.title, d.author, d.file_name, d.total_tokens, d.page_count, d.selected, d.ctime, d.mtime
		FROM documents d
		JOIN document_chunks c ON c.document_id = d.id
		LEFT JOIN document_embeddings e ON e.chunk_id = c.id
		WHERE e.chunk_id IS NULL
		LIMIT $1
	`
	var docs []model.Document
	if err := r.db.SelectContext(ctx, &docs, query, limit); err != nil {
		return nil, err
	}
	return docs, nil
}

// SaveForDocument stores a full set of chunk embeddings for one document in
// a single transaction, replacing any rows that already exist.
func (r *EmbeddingRepo) SaveForDocument(ctx context.Context, embeddings []model.DocumentEmbedding) error {
	if len(embeddings) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO document_embeddings (chunk_id, user_id, embedding, model_name, ctime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chunk_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			model_name = EXCLUDED.model_name,
			ctime = EXCLUDED.ctime
	`
	for i := range embeddings {
		emb := &embeddings[i]
		if _, err := tx.ExecContext(ctx, query,
			emb.ChunkID, emb.UserID, emb.Embedding, emb.ModelName, emb.Ctime,
		); err != nil {
			return fmt.Errorf("save embedding for chunk %s: %w", emb.ChunkID, err)
		}
	}
	return tx.Commit()
}
