package service

import (
	"context"
	"fmt"

	"github.com/lorebase/lorebase/internal/model"
	appErr "github.com/lorebase/lorebase/internal/pkg/errors"
	"github.com/lorebase/lorebase/internal/repo"
)

type PreferencesService struct {
	prefs   *repo.PreferencesRepo
	windows *repo.ContextWindowRepo
}

func NewPreferencesService(prefs *repo.PreferencesRepo, windows *repo.ContextWindowRepo) *PreferencesService {
	return &PreferencesService{prefs: prefs, windows: windows}
}

func (s *PreferencesService) Get(ctx context.Context, userID string) (*model.ChatPreferences, error) {
	return s.prefs.Get(ctx, userID)
}

// Save validates and persists the user's chat preferences. The model must
// have a known context window, otherwise retrieval could not compute its
// token budget later.
func (s *PreferencesService) Save(ctx context.Context, prefs *model.ChatPreferences) error {
	if prefs.Model == "" {
		return fmt.Errorf("%w: model is required", appErr.ErrInvalid)
	}
	if prefs.KnowledgeContextPct < 1 || prefs.KnowledgeContextPct > 100 {
		return fmt.Errorf("%w: knowledge_context_pct must be within 1..100", appErr.ErrInvalid)
	}
	if _, err := s.windows.GetSize(ctx, prefs.Model); err != nil {
		if appErr.IsNotFound(err) {
			return fmt.Errorf("%w: unknown model %s", appErr.ErrInvalid, prefs.Model)
		}
		return err
	}
	return s.prefs.Save(ctx, prefs)
}
