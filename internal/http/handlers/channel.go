package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/ncertlens-backend/internal/http/response"
	"github.com/yungbote/ncertlens-backend/internal/pkg/dbctx"
	"github.com/yungbote/ncertlens-backend/internal/services"
)

type ChannelHandler struct {
	discovery services.DiscoveryService
}

func NewChannelHandler(discovery services.DiscoveryService) *ChannelHandler {
	return &ChannelHandler{discovery: discovery}
}

// POST /api/channels/:channelId/discover?max=50
func (h *ChannelHandler) Discover(c *gin.Context) {
	max, err := queryInt(c, "max")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_max", err)
		return
	}
	res, err := h.discovery.Discover(dbctx.New(c.Request.Context()), c.Param("channelId"), max)
	if err != nil {
		response.RespondServiceError(c, err, "discover_channel_failed")
		return
	}
	response.RespondOK(c, res)
}
