package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qepweb/internal/model"
	"qepweb/internal/schema"
)

// ListSchemas 全部图类型及各自的输入需求
// GET /api/schema
func (h *Handler) ListSchemas(c *gin.Context) {
	sets := make([]schema.RequirementSet, 0, len(model.AllPlotTypes()))
	for _, pt := range model.AllPlotTypes() {
		set, err := schema.Requirements(pt)
		if err != nil {
			continue
		}
		sets = append(sets, set)
	}
	c.JSON(http.StatusOK, gin.H{"plotTypes": sets})
}

// GetSchema 单个图类型的输入需求
// GET /api/schema/:plotType
func (h *Handler) GetSchema(c *gin.Context) {
	pt := model.PlotType(c.Param("plotType"))
	set, err := schema.Requirements(pt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plot type: " + string(pt)})
		return
	}
	c.JSON(http.StatusOK, set)
}
