// Package http 提供HTTP服务器功能
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"heartrisk/config"
	"heartrisk/monitoring"
	"heartrisk/predict"
)

// Server HTTP服务器
type Server struct {
	server *http.Server
	config ServerConfig
	logger *zap.Logger
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int
	Timeout        time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
	Variant        string
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:           5000,
		Timeout:        30 * time.Second,
		MaxBodyBytes:   1 << 20,
		AllowedOrigins: []string{"*"},
		Variant:        config.VariantExtended,
	}
}

// NewHandler 构建完整的路由和中间件链
func NewHandler(cfg ServerConfig, service *predict.Service, metrics *monitoring.MetricsCollector, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	api := &API{
		service: service,
		metrics: metrics,
		logger:  logger,
		variant: cfg.Variant,
	}
	api.Register(mux)

	chain := Chain(
		RecoveryMiddleware(logger),              // 1. 恢复中间件（最先执行，捕获panic）
		LoggerMiddleware(logger, metrics),       // 2. 日志中间件
		SecurityHeadersMiddleware,               // 3. 安全头中间件
		CORSMiddleware(cfg.AllowedOrigins),      // 4. CORS中间件
		RequestSizeMiddleware(cfg.MaxBodyBytes), // 5. 请求大小限制
	)
	return chain(mux)
}

// NewServer 创建HTTP服务器
func NewServer(cfg ServerConfig, service *predict.Service, metrics *monitoring.MetricsCollector, logger *zap.Logger) *Server {
	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, service, metrics, logger),
			ReadTimeout:  cfg.Timeout,
			WriteTimeout: cfg.Timeout,
			IdleTimeout:  120 * time.Second,
		},
		config: cfg,
		logger: logger,
	}
}

// Start 启动服务器
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.Addr()), zap.String("variant", s.config.Variant))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Stop 停止服务器
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	return nil
}

// Addr 返回服务器地址
func (s *Server) Addr() string {
	return s.server.Addr
}
