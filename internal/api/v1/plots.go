package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"qepweb/internal/builder"
	"qepweb/internal/model"
	"qepweb/internal/plot"
	"qepweb/internal/schema"
	"qepweb/internal/session"
	"qepweb/internal/store"
)

// 下载令牌有效期
const downloadTTL = 10 * time.Minute

// 出图默认参数的兜底值，数据库里没有持久化配置时使用
var fallbackDefaults = store.PlotDefaults{DPI: 100, Cmap: "tab10", FigWidth: 12, FigHeight: 6}

// PlotRequest 出图请求体
type PlotRequest struct {
	PlotType string         `json:"plotType"`
	Fields   builder.Fields `json:"fields"`
	Staged   builder.Staged `json:"staged"`
}

// PlotResponse 出图响应
type PlotResponse struct {
	Generated   bool   `json:"generated"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Log         string `json:"log"`
	PNGSize     int    `json:"pngSize,omitempty"`
}

// GeneratePlot 组装、校验并渲染一张图
// POST /api/sessions/:id/plots
func (h *Handler) GeneratePlot(c *gin.Context) {
	s, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req PlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	// 客户端回传的暂存路径必须都落在本会话目录内
	if bad, ok := firstEscapedPath(s, req.Staged); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "staged path outside session: " + bad})
		return
	}

	h.applyDefaults(&req.Fields)

	built, err := builder.Build(model.PlotType(req.PlotType), req.Fields, req.Staged)
	if err != nil {
		if errors.Is(err, schema.ErrUnknownPlotType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown plot type: " + req.PlotType})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := builder.Validate(built); err != nil {
		var miss *builder.MissingInputError
		if errors.As(err, &miss) {
			h.recordRender(s.ID, req, "rejected", miss.Reason, 0, 0)
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": miss.Reason})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	png, renderLog, err := safeRender(built)
	elapsed := time.Since(start)

	if err != nil {
		h.recordRender(s.ID, req, "failed", err.Error(), 0, elapsed)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "plot backend failed",
			"log":   renderLog,
		})
		return
	}

	if len(png) == 0 {
		// 合法的空结果：选择组合下没有可画的点
		h.recordRender(s.ID, req, "empty", renderLog, 0, elapsed)
		c.JSON(http.StatusOK, PlotResponse{Generated: false, Log: renderLog})
		return
	}

	name := fmt.Sprintf("%s_%s.png", req.PlotType, uuid.New().String()[:8])
	path := filepath.Join(h.plotsDir, name)
	if err := os.WriteFile(path, png, 0644); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store plot"})
		return
	}

	h.recordRender(s.ID, req, "ok", "", len(png), elapsed)

	token := h.downloads.put(path, name, "image/png", downloadTTL)
	c.JSON(http.StatusOK, PlotResponse{
		Generated:   true,
		DownloadURL: "/api/plots/download/" + token,
		Log:         renderLog,
		PNGSize:     len(png),
	})
}

// safeRender 渲染一张图，把渲染层的 panic 隔离成本次请求的错误
func safeRender(req model.Request) (png []byte, log string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return plot.Render(req)
}

// DownloadPlot 下载渲染产物（一次性令牌）
// GET /api/plots/download/:token
func (h *Handler) DownloadPlot(c *gin.Context) {
	h.serveDownload(c, true)
}

// ListPlotHistory 最近的出图记录
// GET /api/plots/history?session=s_xxx&limit=50
func (h *Handler) ListPlotHistory(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	records, err := h.store.ListRenderHistory(c.Query("session"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

// serveDownload 校验令牌并发送文件。deleteFile 为真时发送后删除产物。
func (h *Handler) serveDownload(c *gin.Context, deleteFile bool) {
	token := c.Param("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}

	item, ok := h.downloads.get(token)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "download link expired"})
		return
	}
	if _, err := os.Stat(item.filePath); err != nil {
		h.downloads.delete(token)
		c.JSON(http.StatusNotFound, gin.H{"error": "file no longer exists"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", item.fileName))
	c.Header("Content-Type", item.contentType)
	c.File(item.filePath)

	h.downloads.delete(token)
	if deleteFile {
		_ = os.Remove(item.filePath)
	}
}

// applyDefaults 表单里留空的绘图参数用持久化默认值补齐
func (h *Handler) applyDefaults(f *builder.Fields) {
	d := h.store.GetPlotDefaults(fallbackDefaults)
	if f.DPI <= 0 {
		f.DPI = d.DPI
	}
	if f.Cmap == "" {
		f.Cmap = d.Cmap
	}
	if f.FigWidth <= 0 {
		f.FigWidth = d.FigWidth
	}
	if f.FigHeight <= 0 {
		f.FigHeight = d.FigHeight
	}
}

// firstEscapedPath 找出第一个不在会话目录内的暂存路径
func firstEscapedPath(s *session.Session, staged builder.Staged) (string, bool) {
	for _, path := range []string{
		staged.BandFile, staged.KpathFile,
		staged.BandFile2, staged.KpathFile2,
		staged.ProjectionDir, staged.DOSFile,
	} {
		if path == "" {
			continue
		}
		if !s.Contains(path) {
			return path, false
		}
	}
	return "", true
}

func (h *Handler) recordRender(sessionID string, req PlotRequest, status, detail string, pngSize int, elapsed time.Duration) {
	opts, _ := json.Marshal(req.Fields)
	_, _ = h.store.AddRenderRecord(&store.RenderRecord{
		SessionID:  sessionID,
		PlotType:   req.PlotType,
		Options:    string(opts),
		Status:     status,
		Detail:     detail,
		PNGSize:    int64(pngSize),
		DurationMS: elapsed.Milliseconds(),
	})
}
