package v1

import (
	"archive/zip"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"qepweb/internal/exporter"
	"qepweb/internal/tools"
)

// ConvertRequest 投影转换请求
type ConvertRequest struct {
	Path string `json:"path"` // 已暂存的 projwfc 输出
	SOC  bool   `json:"soc"`
}

// ConvertProjections 把 projwfc 输出转成逐通道带权能带文件
// POST /api/sessions/:id/tools/convert
func (h *Handler) ConvertProjections(c *gin.Context) {
	s, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !s.Contains(req.Path) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path outside session"})
		return
	}

	outdir, err := s.EnsureDir("converted")
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var res *tools.ConvertResult
	if req.SOC {
		res, err = tools.ConvertProjectionsSOC(req.Path, outdir)
	} else {
		res, err = tools.ConvertProjections(req.Path, outdir)
	}
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	// 同时打一份 zip 供下载，目录本身留在会话里继续用
	zipName := fmt.Sprintf("converted_%s.zip", uuid.New().String()[:8])
	zipPath := filepath.Join(h.toolsDir, zipName)
	downloadURL := ""
	if err := zipFiles(zipPath, res.Files); err == nil {
		token := h.downloads.put(zipPath, zipName, "application/zip", downloadTTL)
		downloadURL = "/api/tools/download/" + token
	}

	c.JSON(http.StatusOK, gin.H{
		"report": res.Report,
		// 转换产物目录可直接作为 fatbands/pdos 的投影目录
		"projectionDir": res.OutDir,
		"fileCount":     len(res.Files),
		"downloadUrl":   downloadURL,
	})
}

// zipFiles 把一组文件按原名打进 zip
func zipFiles(outPath string, files []string) error {
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		w, err := zw.Create(filepath.Base(path))
		if err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
	return zw.Close()
}

// GapRequest 带隙分析请求
type GapRequest struct {
	BandFile  string  `json:"bandFile"`
	KpathFile string  `json:"kpathFile"`
	Fermi     float64 `json:"fermi"`
}

// DetectGap 带隙分析
// POST /api/sessions/:id/tools/gap
func (h *Handler) DetectGap(c *gin.Context) {
	s, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req GapRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.BandFile == "" || req.KpathFile == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !s.Contains(req.BandFile) || !s.Contains(req.KpathFile) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path outside session"})
		return
	}

	res, err := tools.DetectBandGap(req.BandFile, req.KpathFile, req.Fermi)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, res)
}

// StructureRequest 结构分析请求
type StructureRequest struct {
	Path string `json:"path"`
}

// AnalyzeStructure 结构摘要：组分、z 向分层、层间距
// POST /api/sessions/:id/tools/structure
func (h *Handler) AnalyzeStructure(c *gin.Context) {
	s, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req StructureRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !s.Contains(req.Path) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path outside session"})
		return
	}

	report, err := tools.AnalyzeStructure(req.Path)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

// ExportRequest Excel 导出请求
type ExportRequest struct {
	BandFile      string  `json:"bandFile"`
	KpathFile     string  `json:"kpathFile"`
	DOSFile       string  `json:"dosFile"`
	ProjectionDir string  `json:"projectionDir"`
	Fermi         float64 `json:"fermi"`
	Grouping      string  `json:"grouping"`
	SubOrbital    bool    `json:"subOrbital"`
}

// ExportXlsx 把已暂存数据导出为 Excel 工作簿
// POST /api/sessions/:id/tools/export-xlsx
func (h *Handler) ExportXlsx(c *gin.Context) {
	s, ok := h.requireSession(c)
	if !ok {
		return
	}

	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	for _, path := range []string{req.BandFile, req.KpathFile, req.DOSFile, req.ProjectionDir} {
		if path != "" && !s.Contains(path) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path outside session: " + path})
			return
		}
	}

	f, err := h.exporter.Export(exporter.Input{
		BandFile:      req.BandFile,
		KpathFile:     req.KpathFile,
		DOSFile:       req.DOSFile,
		ProjectionDir: req.ProjectionDir,
		Fermi:         req.Fermi,
		Grouping:      req.Grouping,
		SubOrbital:    req.SubOrbital,
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	name := fmt.Sprintf("qepweb_export_%s.xlsx", uuid.New().String()[:8])
	path := filepath.Join(h.toolsDir, name)
	if err := f.SaveAs(path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store workbook"})
		return
	}

	token := h.downloads.put(path, name,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", downloadTTL)
	c.JSON(http.StatusOK, gin.H{"downloadUrl": "/api/tools/download/" + token})
}

// DownloadTool 下载工具产物（一次性令牌）
// GET /api/tools/download/:token
func (h *Handler) DownloadTool(c *gin.Context) {
	h.serveDownload(c, true)
}
