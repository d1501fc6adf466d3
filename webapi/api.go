package webapi

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"adshield/config"
	"adshield/lifecycle"
	"adshield/logger"
)

// APIResponse 统一的 API 响应格式
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Server Web API 服务器
type Server struct {
	cfg        *config.Config
	configPath string
	ctrl       *lifecycle.Controller
	host       *Host

	// hostMu 串行化所有宿主树操作，相当于页面的单一事件线程
	hostMu   sync.Mutex
	cfgMutex sync.Mutex
	listener *http.Server
}

// NewServer 创建新的 Web API 服务器
func NewServer(cfg *config.Config, configPath string, ctrl *lifecycle.Controller, host *Host) *Server {
	s := &Server{
		cfg:        cfg,
		configPath: configPath,
		ctrl:       ctrl,
		host:       host,
	}
	s.listener = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebUI.ListenPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler 返回注册了全部路由的 handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/api/stats", s.handleStats)

	// AdBlock API routes
	mux.HandleFunc("/api/adblock/status", s.handleAdBlockStatus)
	mux.HandleFunc("/api/adblock/toggle", s.handleAdBlockToggle)
	mux.HandleFunc("/api/adblock/reload", s.handleAdBlockReload)
	mux.HandleFunc("/api/adblock/rules", s.handleAdBlockRules)
	mux.HandleFunc("/api/adblock/test", s.handleAdBlockTest)
	mux.HandleFunc("/api/adblock/events", s.handleAdBlockEvents)

	// Host routes
	mux.HandleFunc("/api/fetch", s.handleFetch)
	mux.HandleFunc("/api/page", s.handlePage)

	return s.corsMiddleware(mux)
}

// Start 启动 Web API 服务，阻塞直到服务停止
func (s *Server) Start() error {
	if !s.cfg.WebUI.Enabled {
		logger.Info("WebAPI is disabled")
		return nil
	}

	logger.Infof("Web API server started on http://localhost:%d", s.cfg.WebUI.ListenPort)
	if err := s.listener.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown 优雅关闭服务
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.cfg.WebUI.Enabled {
		return nil
	}
	return s.listener.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSONSuccess(w, "ok", map[string]interface{}{
		"state": s.ctrl.State().String(),
	})
}
