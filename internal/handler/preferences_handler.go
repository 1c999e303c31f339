package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lorebase/lorebase/internal/model"
	"github.com/lorebase/lorebase/internal/pkg/errcode"
	"github.com/lorebase/lorebase/internal/pkg/response"
	"github.com/lorebase/lorebase/internal/service"
)

type PreferencesHandler struct {
	preferences *service.PreferencesService
}

func NewPreferencesHandler(preferences *service.PreferencesService) *PreferencesHandler {
	return &PreferencesHandler{preferences: preferences}
}

func (h *PreferencesHandler) Get(c *gin.Context) {
	prefs, err := h.preferences.Get(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, prefs)
}

type preferencesRequest struct {
	Model               string `json:"model"`
	KnowledgeContextPct int    `json:"knowledge_context_pct"`
	KnowledgeQueryMode  bool   `json:"knowledge_query_mode"`
}

func (h *PreferencesHandler) Update(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	prefs := &model.ChatPreferences{
		UserID:              getUserID(c),
		Model:               req.Model,
		KnowledgeContextPct: req.KnowledgeContextPct,
		KnowledgeQueryMode:  req.KnowledgeQueryMode,
	}
	if err := h.preferences.Save(c.Request.Context(), prefs); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, prefs)
}
