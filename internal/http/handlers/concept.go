package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ncertlens-backend/internal/http/response"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/services"
)

type ConceptHandler struct {
	concepts services.ConceptService
}

func NewConceptHandler(concepts services.ConceptService) *ConceptHandler {
	return &ConceptHandler{concepts: concepts}
}

// GET /api/concepts?subject=Physics&class=10
func (h *ConceptHandler) List(c *gin.Context) {
	class, err := queryInt(c, "class")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_class", err)
		return
	}
	list, err := h.concepts.List(dbctx.New(c.Request.Context()), c.Query("subject"), class)
	if err != nil {
		response.RespondServiceError(c, err, "list_concepts_failed")
		return
	}
	response.RespondOK(c, gin.H{"data": list, "count": len(list)})
}

// GET /api/concepts/:conceptId
func (h *ConceptHandler) Get(c *gin.Context) {
	concept, err := h.concepts.Get(dbctx.New(c.Request.Context()), c.Param("conceptId"))
	if err != nil {
		response.RespondServiceError(c, err, "get_concept_failed")
		return
	}
	response.RespondOK(c, gin.H{"concept": concept})
}

// GET /api/concepts/:conceptId/videos?limit=20
func (h *ConceptHandler) Videos(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	refs, err := h.concepts.Videos(c.Request.Context(), c.Param("conceptId"), limit)
	if err != nil {
		response.RespondServiceError(c, err, "concept_videos_failed")
		return
	}
	response.RespondOK(c, gin.H{"data": refs, "count": len(refs)})
}
