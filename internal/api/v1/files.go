package v1

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"qepweb/internal/detect"
	"qepweb/internal/schema"
)

// 槽位到暂存子目录。投影通道成组上传，聚合进独立子目录。
var slotSubdirs = map[string]string{
	string(schema.SlotBandFile):      "",
	string(schema.SlotKpathFile):     "",
	string(schema.SlotBandFile2):     "overlay",
	string(schema.SlotKpathFile2):    "overlay",
	string(schema.SlotDOSFile):       "",
	string(schema.SlotProjectionDir): "projections",
	"structure_file":                 "tools",
	"proj_out":                       "tools",
}

// UploadFiles 把上传文件暂存进会话目录
// POST /api/sessions/:id/files  (multipart: slot=<槽位>, file=<一或多个文件>)
func (h *Handler) UploadFiles(c *gin.Context) {
	s, ok := h.requireSession(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}

	slot := c.PostForm("slot")
	subdir, known := slotSubdirs[slot]
	if !known {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown upload slot: " + slot})
		return
	}

	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file in upload"})
		return
	}
	if slot != string(schema.SlotProjectionDir) && len(files) > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slot accepts a single file"})
		return
	}

	var paths []string
	for _, fh := range files {
		if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large: " + fh.Filename})
			return
		}
		blob, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
			return
		}
		path, err := s.Stage(blob, fh.Filename, subdir)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		paths = append(paths, path)
	}

	resp := gin.H{"slot": slot, "paths": paths}
	if slot == string(schema.SlotProjectionDir) {
		resp["projectionDir"] = s.Dir(subdir)
	}
	c.JSON(http.StatusOK, resp)
}

// DetectFermi 从 QE 输出里探测费米能级 / 最高占据能级。
// 接受直接上传（multipart file）或已暂存路径（JSON {path}）。
// POST /api/sessions/:id/detect-fermi
func (h *Handler) DetectFermi(c *gin.Context) {
	s, ok := h.requireSession(c)
	if !ok {
		return
	}

	var path string
	if fh, err := c.FormFile("file"); err == nil {
		blob, err := readUpload(fh)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
			return
		}
		path, err = s.Stage(blob, fh.Filename, "detect")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	} else {
		var req struct {
			Path string `json:"path"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Path == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no file or staged path provided"})
			return
		}
		if !s.Contains(req.Path) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "path outside session"})
			return
		}
		path = req.Path
	}

	value, found := detect.DetectFermi(path)
	if !found {
		// 没匹配到不是错误：前端提示手工填写
		c.JSON(http.StatusOK, gin.H{"found": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"found": true, "value": value})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
