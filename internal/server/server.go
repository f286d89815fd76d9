package server

import (
	"embed"
	"io/fs"
	"log"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	v1 "qepweb/internal/api/v1"
	"qepweb/internal/config"
	"qepweb/internal/session"
	"qepweb/internal/store"
)

//go:embed all:dist
var staticFiles embed.FS

// Server HTTP服务器
type Server struct {
	router   *gin.Engine
	store    *store.Store
	sessions *session.Manager
	v1       *v1.Handler
}

// NewServer 创建服务器。dataDir 必须已存在（含 sessions/plots/tools 子目录）。
func NewServer(cfg *config.AppConfig, dataDir string) *Server {
	devMode := cfg.Server.DevMode
	if !devMode {
		gin.SetMode(gin.ReleaseMode)
	}

	sqliteStore, err := store.New(filepath.Join(dataDir, "qepweb.db"))
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sessions := session.NewManager(filepath.Join(dataDir, "sessions"))

	v1Handler := v1.NewHandler(
		sqliteStore,
		sessions,
		filepath.Join(dataDir, "plots"),
		filepath.Join(dataDir, "tools"),
		cfg.Upload.MaxFileMB,
	)

	s := &Server{
		router:   gin.Default(),
		store:    sqliteStore,
		sessions: sessions,
		v1:       v1Handler,
	}

	s.setupRoutes(devMode)
	return s
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(devMode bool) {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// V1 API 路由
	api := s.router.Group("/api")
	{
		s.v1.RegisterRoutes(api)
	}

	// 静态资源
	if devMode {
		// 开发模式：代理到前端开发服务器
		s.router.NoRoute(func(c *gin.Context) {
			c.Redirect(http.StatusTemporaryRedirect, "http://localhost:5173"+c.Request.URL.Path)
		})
	} else {
		sub, _ := fs.Sub(staticFiles, "dist")

		s.router.GET("/", func(c *gin.Context) {
			data, _ := fs.ReadFile(sub, "index.html")
			c.Data(http.StatusOK, "text/html; charset=utf-8", data)
		})

		// SPA 路由 fallback
		s.router.NoRoute(func(c *gin.Context) {
			data, _ := fs.ReadFile(sub, "index.html")
			c.Data(http.StatusOK, "text/html; charset=utf-8", data)
		})
	}
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

// Shutdown 退出前清理：销毁全部会话目录并关闭数据库
func (s *Server) Shutdown() {
	s.sessions.CleanupAll()
	if err := s.store.Close(); err != nil {
		log.Printf("close database: %v", err)
	}
}
