package v1

import (
	"github.com/gin-gonic/gin"

	"qepweb/internal/exporter"
	"qepweb/internal/session"
	"qepweb/internal/store"
)

// Handler V1 API 处理器
type Handler struct {
	store     *store.Store
	sessions  *session.Manager
	exporter  *exporter.Exporter
	downloads *downloadStore

	plotsDir string // 出图产物目录
	toolsDir string // 工具产物目录

	maxUploadBytes int64
}

// NewHandler 创建 V1 API 处理器
func NewHandler(st *store.Store, sessions *session.Manager, plotsDir, toolsDir string, maxUploadMB int) *Handler {
	return &Handler{
		store:          st,
		sessions:       sessions,
		exporter:       exporter.NewExporter(),
		downloads:      newDownloadStore(),
		plotsDir:       plotsDir,
		toolsDir:       toolsDir,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// RegisterRoutes 注册 V1 API 路由
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	// 系统状态
	router.GET("/status", h.GetStatus)

	// 配置管理
	router.GET("/config", h.GetConfig)
	router.PATCH("/config", h.UpdateConfig)

	// 图类型输入需求
	router.GET("/schema", h.ListSchemas)
	router.GET("/schema/:plotType", h.GetSchema)

	// 会话生命周期
	router.POST("/sessions", h.CreateSession)
	router.DELETE("/sessions/:id", h.DeleteSession)

	// 文件暂存与参数探测
	router.POST("/sessions/:id/files", h.UploadFiles)
	router.POST("/sessions/:id/detect-fermi", h.DetectFermi)

	// 出图
	router.POST("/sessions/:id/plots", h.GeneratePlot)
	router.GET("/plots/download/:token", h.DownloadPlot)
	router.GET("/plots/history", h.ListPlotHistory)

	// 计算小工具
	router.POST("/sessions/:id/tools/convert", h.ConvertProjections)
	router.POST("/sessions/:id/tools/gap", h.DetectGap)
	router.POST("/sessions/:id/tools/structure", h.AnalyzeStructure)
	router.POST("/sessions/:id/tools/export-xlsx", h.ExportXlsx)
	router.GET("/tools/download/:token", h.DownloadTool)
}
