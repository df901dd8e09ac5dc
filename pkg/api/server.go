package api

import (
	"net/http"
	"sync"
	"time"

	"apk_release/pkg/release"
	"apk_release/pkg/shell"

	"github.com/gin-gonic/gin"
)

// Server 发布安装的HTTP服务端
type Server struct {
	router    *gin.Engine
	installer *release.Installer
	opts      release.Options

	// 同一时间只允许一个 adb 操作，保证设备按顺序处理
	mu sync.Mutex
}

// InstallRequest POST /api/v1/install 的请求体
type InstallRequest struct {
	Push      bool     `json:"push"`
	Install   bool     `json:"install"`
	KeepGoing bool     `json:"keep_going"`
	Devices   []string `json:"devices,omitempty"` // 非空时替代 ALLOWED_DEVICES
}

// NewServer 创建服务端，opts 为配置中的默认运行参数
func NewServer(installer *release.Installer, opts release.Options) *Server {
	server := &Server{
		router:    gin.Default(),
		installer: installer,
		opts:      opts,
	}
	server.setupRoutes()
	return server
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")
	{
		api.GET("/health", s.healthCheck)
		api.GET("/devices", s.listDevices)
		api.GET("/artifact", s.getArtifact)
		api.POST("/install", s.install)
	}
}

// Handler 返回 http.Handler，便于测试
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动HTTP服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// listDevices 发现并过滤设备
func (s *Server) listDevices(c *gin.Context) {
	s.mu.Lock()
	devices, err := s.installer.Targets(s.opts.AllowList)
	s.mu.Unlock()

	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Failed to list devices",
			"details":   err.Error(),
			"exit_code": shell.ExitCode(err),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"count":   len(devices),
	})
}

// getArtifact 按当前 manifest 计算产物描述
func (s *Server) getArtifact(c *gin.Context) {
	artifact, err := release.LoadArtifact(s.opts.ManifestPath, time.Now().UnixMilli())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to read manifest",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"artifact":  artifact,
		"file_name": artifact.FileName() + ".apk",
	})
}

// install 执行一次推送/安装，不会升级版本号
func (s *Server) install(c *gin.Context) {
	var request InstallRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request format",
			"details": err.Error(),
		})
		return
	}
	if !request.Push && !request.Install {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "At least one of push or install must be true",
		})
		return
	}

	opts := s.opts
	opts.Publish = false
	opts.PushAPK = request.Push
	opts.Install = request.Install
	opts.KeepGoing = opts.KeepGoing || request.KeepGoing
	if len(request.Devices) > 0 {
		opts.AllowList = release.NewAllowList(request.Devices...)
	}

	s.mu.Lock()
	report, err := s.installer.Run(opts)
	s.mu.Unlock()

	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "Release run failed",
			"details":   err.Error(),
			"exit_code": shell.ExitCode(err),
			"report":    report,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"report":  report,
	})
}
