package repo

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lorebase/lorebase/internal/model"
)

type MessageChunkRepo struct {
	db *sqlx.DB
}

func NewMessageChunkRepo(db *sqlx.DB) *MessageChunkRepo {
	return &MessageChunkRepo{db: db}
}

// SaveAll records the chunk associations of one message in a single
// transaction.
func (r *MessageChunkRepo) SaveAll(ctx context.Context, items []model.MessageChunk) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO message_chunks (message_id, chunk_id, rank)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, chunk_id) DO UPDATE SET rank = EXCLUDED.rank
	`
	for _, item := range items {
		if _, err := tx.ExecContext(ctx, query, item.MessageID, item.ChunkID, item.Rank); err != nil {
			return fmt.Errorf("save message chunk %s: %w", item.ChunkID, err)
		}
	}
	return tx.Commit()
}

// ListByMessage returns the associations of one message in rank order.
func (r *MessageChunkRepo) ListByMessage(ctx context.Context, messageID string) ([]model.MessageChunk, error) {
	const query = `
		SELECT message_id, chunk_id, rank
		FROM message_chunks
		WHERE message_id = $1
		ORDER BY rank
	`
	var items []model.MessageChunk
	if err := r.db.SelectContext(ctx, &items, query, messageID); err != nil {
		return nil, err
	}
	return items, nil
}
