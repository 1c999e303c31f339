package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/lorebase/lorebase/internal/pkg/errcode"
	"github.com/lorebase/lorebase/internal/pkg/response"
	"github.com/lorebase/lorebase/internal/service"
)

type QueryHandler struct {
	retrieval *service.RetrievalService
}

func NewQueryHandler(retrieval *service.RetrievalService) *QueryHandler {
	return &QueryHandler{retrieval: retrieval}
}

type augmentRequest struct {
	MessageID string `json:"message_id"`
	Query     string `json:"query"`
}

type augmentResponse struct {
	Query        string             `json:"query"`
	ChunkIDs     []string           `json:"chunk_ids"`
	Associations []associationEntry `json:"associations"`
}

type associationEntry struct {
	ChunkID string `json:"chunk_id"`
	Rank    int    `json:"rank"`
}

// Augment wraps a chat query with retrieved knowledge context. When the user
// has knowledge retrieval disabled the query comes back unchanged with no
// associations.
func (h *QueryHandler) Augment(c *gin.Context) {
	var req augmentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		response.Error(c, errcode.ErrInvalid, "query is required")
		return
	}
	augmented, associations, err := h.retrieval.AugmentQuery(c.Request.Context(), getUserID(c), req.MessageID, req.Query)
	if err != nil {
		handleError(c, err)
		return
	}
	resp := augmentResponse{
		Query:        augmented,
		ChunkIDs:     make([]string, 0, len(associations)),
		Associations: make([]associationEntry, 0, len(associations)),
	}
	for _, a := range associations {
		resp.ChunkIDs = append(resp.ChunkIDs, a.ChunkID)
		resp.Associations = append(resp.Associations, associationEntry{ChunkID: a.ChunkID, Rank: a.Rank})
	}
	response.Success(c, resp)
}

// Associations lists which chunks were injected into a past message, in rank
// order.
func (h *QueryHandler) Associations(c *gin.Context) {
	items, err := h.retrieval.Associations(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, items)
}
