package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetConfig 获取出图默认参数，raw 附带全部持久化配置项
// GET /api/config
func (h *Handler) GetConfig(c *gin.Context) {
	d := h.store.GetPlotDefaults(fallbackDefaults)
	raw, err := h.store.GetAllConfig()
	if err != nil {
		raw = map[string]string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"dpi":       d.DPI,
		"cmap":      d.Cmap,
		"figWidth":  d.FigWidth,
		"figHeight": d.FigHeight,
		"raw":       raw,
	})
}

// UpdateConfigRequest 配置更新请求，留空的字段不改动
type UpdateConfigRequest struct {
	DPI       *int     `json:"dpi"`
	Cmap      *string  `json:"cmap"`
	FigWidth  *float64 `json:"figWidth"`
	FigHeight *float64 `json:"figHeight"`
}

// UpdateConfig 更新出图默认参数
// PATCH /api/config
func (h *Handler) UpdateConfig(c *gin.Context) {
	var req UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	d := h.store.GetPlotDefaults(fallbackDefaults)
	if req.DPI != nil {
		if *req.DPI <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dpi must be positive"})
			return
		}
		d.DPI = *req.DPI
	}
	if req.Cmap != nil {
		d.Cmap = *req.Cmap
	}
	if req.FigWidth != nil {
		if *req.FigWidth <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "figWidth must be positive"})
			return
		}
		d.FigWidth = *req.FigWidth
	}
	if req.FigHeight != nil {
		if *req.FigHeight <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "figHeight must be positive"})
			return
		}
		d.FigHeight = *req.FigHeight
	}

	if err := h.store.SetPlotDefaults(d); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d)
}
