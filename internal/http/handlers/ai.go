package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ncertlens-backend/internal/http/response"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/services"
)

type AIHandler struct {
	ai services.AIService
}

func NewAIHandler(ai services.AIService) *AIHandler {
	return &AIHandler{ai: ai}
}

type findConceptsReq struct {
	Transcript  string `json:"transcript"`
	Subject     string `json:"subject"`
	Class       int    `json:"class"`
	MaxConcepts int    `json:"maxConcepts"`
}

// POST /api/ai/find-ncert-concepts
func (h *AIHandler) FindConcepts(c *gin.Context) {
	var req findConceptsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	out, err := h.ai.FindConcepts(c.Request.Context(), services.FindConceptsRequest{
		Transcript:  req.Transcript,
		Subject:     req.Subject,
		Class:       req.Class,
		MaxConcepts: req.MaxConcepts,
	})
	if err != nil {
		response.RespondServiceError(c, err, "find_concepts_failed")
		return
	}
	response.RespondOK(c, gin.H{"data": out.Concepts, "count": len(out.Concepts), "parse": out.Kind})
}

type searchSimilarReq struct {
	Query          string   `json:"query"`
	Limit          int      `json:"limit"`
	ScoreThreshold *float64 `json:"scoreThreshold"`
	Subject        string   `json:"subject"`
	Class          int      `json:"class"`
}

// POST /api/ai/search-similar-videos
func (h *AIHandler) SearchSimilarVideos(c *gin.Context) {
	var req searchSimilarReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	videos, err := h.ai.SearchSimilarVideos(dbctx.New(c.Request.Context()), services.SimilarVideosRequest{
		Query:          req.Query,
		Limit:          req.Limit,
		ScoreThreshold: req.ScoreThreshold,
		Subject:        req.Subject,
		Class:          req.Class,
	})
	if err != nil {
		response.RespondServiceError(c, err, "search_similar_failed")
		return
	}
	response.RespondOK(c, gin.H{"data": videos, "count": len(videos)})
}

// GET /api/ai/videos/:videoId/ncert-concepts?limit=5&threshold=0.6&subject=&class=
func (h *AIHandler) VideoConcepts(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_limit", err)
		return
	}
	threshold, err := queryFloat(c, "threshold")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_threshold", err)
		return
	}
	class, err := queryInt(c, "class")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_class", err)
		return
	}
	matches, err := h.ai.VideoConcepts(dbctx.New(c.Request.Context()), c.Param("videoId"), services.VideoConceptsRequest{
		Limit:     limit,
		Threshold: threshold,
		Subject:   c.Query("subject"),
		Class:     class,
	})
	if err != nil {
		response.RespondServiceError(c, err, "video_concepts_failed")
		return
	}
	response.RespondOK(c, gin.H{"data": matches, "count": len(matches)})
}

type textReq struct {
	Text        string `json:"text"`
	MaxKeywords int    `json:"maxKeywords"`
}

// POST /api/ai/generate-embedding
func (h *AIHandler) GenerateEmbedding(c *gin.Context) {
	var req textReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	vec, err := h.ai.GenerateEmbedding(c.Request.Context(), req.Text)
	if err != nil {
		response.RespondServiceError(c, err, "generate_embedding_failed")
		return
	}
	response.RespondOK(c, gin.H{"embedding": vec, "dimension": len(vec)})
}

// GET /api/ai/videos/:videoId/summary?maxLength=200&focusArea=
func (h *AIHandler) Summary(c *gin.Context) {
	maxLength, err := queryInt(c, "maxLength")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_max_length", err)
		return
	}
	sum, err := h.ai.Summary(dbctx.New(c.Request.Context()), c.Param("videoId"), maxLength, c.Query("focusArea"))
	if err != nil {
		response.RespondServiceError(c, err, "summary_failed")
		return
	}
	response.RespondOK(c, sum)
}

// POST /api/ai/extract-keywords
func (h *AIHandler) ExtractKeywords(c *gin.Context) {
	var req textReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	kws, err := h.ai.Keywords(c.Request.Context(), req.Text, req.MaxKeywords)
	if err != nil {
		response.RespondServiceError(c, err, "extract_keywords_failed")
		return
	}
	response.RespondOK(c, gin.H{"keywords": kws, "count": len(kws)})
}

// GET /api/ai/vector-db/info
func (h *AIHandler) VectorInfo(c *gin.Context) {
	info, err := h.ai.VectorInfo(c.Request.Context())
	if err != nil {
		response.RespondServiceError(c, err, "vector_info_failed")
		return
	}
	response.RespondOK(c, gin.H{"collections": info})
}

// GET /api/ai/health
func (h *AIHandler) Health(c *gin.Context) {
	rep := h.ai.Health(c.Request.Context())
	status := http.StatusOK
	if !rep.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, rep)
}
