package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ncertlens-backend/internal/http/response"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/services"
)

type VideoHandler struct {
	videos services.VideoService
}

func NewVideoHandler(videos services.VideoService) *VideoHandler {
	return &VideoHandler{videos: videos}
}

type processVideoReq struct {
	VideoID string `json:"videoId"`
	Force   bool   `json:"force"`
	Subject string `json:"subject"`
	Class   int    `json:"class"`
}

// POST /api/videos/process
func (h *VideoHandler) Process(c *gin.Context) {
	var req processVideoReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	dbc := dbctx.New(c.Request.Context())
	res, err := h.videos.Process(dbc, services.ProcessRequest{
		VideoID: req.VideoID,
		Force:   req.Force,
		Subject: req.Subject,
		Class:   req.Class,
	})
	if err != nil {
		response.RespondServiceError(c, err, "process_video_failed")
		return
	}
	if res.Video != nil {
		response.RespondOK(c, gin.H{"videoId": res.VideoID, "status": res.Status, "video": res.Video})
		return
	}
	response.RespondAccepted(c, gin.H{"videoId": res.VideoID, "status": res.Status, "queued": res.Accepted})
}

// GET /api/videos/:videoId/status
func (h *VideoHandler) Status(c *gin.Context) {
	st, err := h.videos.Status(dbctx.New(c.Request.Context()), c.Param("videoId"))
	if err != nil {
		response.RespondServiceError(c, err, "video_status_failed")
		return
	}
	response.RespondOK(c, st)
}

// GET /api/videos/:videoId
func (h *VideoHandler) Get(c *gin.Context) {
	v, err := h.videos.Details(dbctx.New(c.Request.Context()), c.Param("videoId"))
	if err != nil {
		response.RespondServiceError(c, err, "get_video_failed")
		return
	}
	response.RespondOK(c, gin.H{"video": v})
}

// GET /api/videos/:videoId/ncert-mappings?timestamp=42.5
func (h *VideoHandler) MappingsAt(c *gin.Context) {
	ts, err := queryFloat(c, "timestamp")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_timestamp", err)
		return
	}
	if ts == nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_timestamp", fmt.Errorf("timestamp is required"))
		return
	}
	mappings, err := h.videos.MappingsAt(dbctx.New(c.Request.Context()), c.Param("videoId"), *ts)
	if err != nil {
		response.RespondServiceError(c, err, "get_mappings_failed")
		return
	}
	response.RespondOK(c, gin.H{"timestamp": *ts, "mappings": mappings})
}

// GET /api/videos/:videoId/transcript/search?q=photosynthesis
func (h *VideoHandler) SearchTranscript(c *gin.Context) {
	q := c.Query("q")
	matches, err := h.videos.TranscriptSearch(dbctx.New(c.Request.Context()), c.Param("videoId"), q)
	if err != nil {
		response.RespondServiceError(c, err, "transcript_search_failed")
		return
	}
	response.RespondOK(c, gin.H{"query": q, "matches": matches, "count": len(matches)})
}
