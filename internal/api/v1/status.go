package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qepweb/internal/model"
)

// StatusResponse 系统状态响应
type StatusResponse struct {
	ActiveSessions int            `json:"activeSessions"` // 活跃会话数
	RenderCounts   map[string]int `json:"renderCounts"`   // 按状态统计的出图次数
	PlotTypes      []string       `json:"plotTypes"`      // 支持的图类型
}

// GetStatus 获取系统状态
// GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	counts, err := h.store.CountRenders()
	if err != nil {
		counts = map[string]int{}
	}

	types := make([]string, 0, len(model.AllPlotTypes()))
	for _, pt := range model.AllPlotTypes() {
		types = append(types, string(pt))
	}

	c.JSON(http.StatusOK, StatusResponse{
		ActiveSessions: h.sessions.Count(),
		RenderCounts:   counts,
		PlotTypes:      types,
	})
}
