package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qepweb/internal/session"
)

// CreateSession 创建工作会话
// POST /api/sessions
func (h *Handler) CreateSession(c *gin.Context) {
	s := h.sessions.Create()
	c.JSON(http.StatusOK, gin.H{
		"sessionId": s.ID,
		"createdAt": s.CreatedAt,
	})
}

// DeleteSession 销毁会话并删除其暂存目录
// DELETE /api/sessions/:id
func (h *Handler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.sessions.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

// requireSession 按路径参数取会话，不存在时直接写 404
func (h *Handler) requireSession(c *gin.Context) (*session.Session, bool) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return s, true
}
