package repo

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/lorebase/lorebase/internal/model"
)

type PreferencesRepo struct {
	db *sqlx.DB
}

func NewPreferencesRepo(db *sqlx.DB) *PreferencesRepo {
	return &PreferencesRepo{db: db}
}

// Get returns the user's chat preferences, falling back to the defaults when
// the user has never saved any.
func (r *PreferencesRepo) Get(ctx context.Context, userID string) (*model.ChatPreferences, error) {
	const query = `
		SELECT user_id, model, knowledge_context_pct, knowledge_query_mode
		FROM chat_preferences
		WHERE user_id = $1
	`
	var prefs model.ChatPreferences
	if err := r.db.GetContext(ctx, &prefs, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return model.DefaultChatPreferences(userID), nil
		}
		return nil, err
	}
	return &prefs, nil
}

func (r *PreferencesRepo) Save(ctx context.Context, prefs *model.ChatPreferences) error {
	const query = `
		INSERT INTO chat_preferences (user_id, model, knowledge_context_pct, knowledge_query_mode)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			model = EXCLUDED.model,
			knowledge_context_pct = EXCLUDED.knowledge_context_pct,
			knowledge_query_mode = EXCLUDED.knowledge_query_mode
	`
	_, err := r.db.ExecContext(ctx, query,
		prefs.UserID, prefs.Model, prefs.KnowledgeContextPct, prefs.KnowledgeQueryMode)
	return err
}
