package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
)

type ContextWindowRepo struct {
	db *sqlx.DB
}

func NewContextWindowRepo(db *sqlx.DB) *ContextWindowRepo {
	return &ContextWindowRepo{db: db}
}

// GetSize returns the context window size in tokens for a chat model. An
// unknown model is ErrNotFound; callers decide the fallback.
func (r *ContextWindowRepo) GetSize(ctx context.Context, modelName string) (int, error) {
	const query = `SELECT context_window_size FROM model_context_windows WHERE model_name = $1`
	var size int
	if err := r.db.GetContext(ctx, &size, query, modelName); err != nil {
		if err == sql.ErrNoRows {
			return 0, appErr.ErrNotFound
		}
		return 0, err
	}
	return size, nil
}

func (r *ContextWindowRepo) Upsert(ctx context.Context, modelName string, size int) error {
	const query = `
		INSERT INTO model_context_windows (model_name, context_window_size)
		VALUES ($1, $2)
		ON CONFLICT (model_name) DO UPDATE SET context_window_size = EXCLUDED.context_window_size
	`
	_, err := r.db.ExecContext(ctx, query, modelName, size)
	return err
}
