// RosterCheck 排班规则校验服务
// 主程序入口

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paiban/rostercheck/internal/config"
	"github.com/paiban/rostercheck/internal/database"
	"github.com/paiban/rostercheck/internal/handler"
	"github.com/paiban/rostercheck/internal/metrics"
	"github.com/paiban/rostercheck/internal/middleware"
	"github.com/paiban/rostercheck/internal/repository"
	"github.com/paiban/rostercheck/pkg/constraint/builtin"
	"github.com/paiban/rostercheck/pkg/logger"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	format := "console"
	if cfg.IsProduction() {
		format = "json"
	}
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: format,
	})

	fmt.Printf("RosterCheck 排班规则校验 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	registry := builtin.NewRegistry(cfg.Validation)

	opts := []handler.HandlerOption{}
	if cfg.Metrics.Enabled {
		opts = append(opts, handler.WithObserver(metrics.NewValidationObserver(nil)))
	}

	// 数据库可选，未启用时只提供无状态接口
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(&cfg.Database)
		if err != nil {
			logger.Fatal().Err(err).Msg("数据库连接失败")
		}
		defer db.Close()
		opts = append(opts, handler.WithSnapshotLoader(repository.NewSnapshotRepository(db)))
		if cfg.Metrics.Enabled {
			metrics.GetRegistry().WatchDB(db.Stats)
		}
	}

	validationHandler := handler.NewValidationHandler(registry, opts...)

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"degraded","service":"rostercheck","database":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"rostercheck"}`))
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	// ========================================
	// API v1 端点
	// ========================================

	validationHandler.Register(mux)

	// ========================================
	// 监控端点
	// ========================================

	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	// 中间件执行顺序：requestID -> rateLimit -> cors -> logging -> handler
	var limiter *middleware.RateLimiter
	if cfg.App.RateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.App.RateLimit)
	}
	root := middleware.Chain(mux,
		middleware.RequestID,
		middleware.RateLimit(limiter),
		middleware.CORS,
		middleware.Logging,
	)

	port := fmt.Sprintf("%d", cfg.App.Port)
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Str("port", port).
			Str("version", Version).
			Int("rules", registry.Len()).
			Bool("database", db != nil).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}
