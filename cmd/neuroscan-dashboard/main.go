package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/neuroscan/neuroscan-go/internal/cache"
	"github.com/neuroscan/neuroscan-go/internal/client"
	"github.com/neuroscan/neuroscan-go/internal/config"
	"github.com/neuroscan/neuroscan-go/internal/handler"
	"github.com/neuroscan/neuroscan-go/internal/render"
	"github.com/neuroscan/neuroscan-go/internal/service"
	"github.com/neuroscan/neuroscan-go/pkg/logger"
	"github.com/neuroscan/neuroscan-go/pkg/redis"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := os.Getenv("NEUROSCAN_CONFIG")
	if configPath == "" {
		configPath = "configs/neuroscan-dashboard.yaml"
	}

	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 初始化日志
	zapLogger, err := logger.NewLogger(cfg.Log)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("neuroscan-dashboard 服务启动中...", zap.String("backend", cfg.Backend.BaseURL))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 内容缓存：启用 Redis 时使用 Redis，否则进程内缓存
	var contentCache cache.Cache = cache.NewMemoryCache()
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			zapLogger.Fatal("初始化 Redis 失败", zap.Error(err))
		}
		defer redisClient.Close()
		contentCache = cache.NewRedisCache(redisClient, cfg.Cache.Prefix)
	}

	// 初始化服务
	backend := client.NewBackendClient(cfg.Backend.BaseURL, cfg.Backend.Timeout, zapLogger)
	contentService := service.NewContentService(backend, contentCache, cfg.Cache.TTL, zapLogger)
	charts := render.NewPNGRenderer(cfg.Charts.Width, cfg.Charts.Height)

	renderOpts := render.DefaultOptions()
	renderOpts.AbsencePhrases = cfg.Result.AbsencePhrases
	renderOpts.LowConfidenceBelow = cfg.Result.LowConfidenceBelow

	chatOpts := service.ChatOptions{
		AskPrompt:          cfg.Chat.AskPrompt,
		ApologyMessage:     cfg.Chat.ApologyMessage,
		StarterSuggestions: cfg.Chat.StarterSuggestions,
		Policy:             service.KeywordPolicy{Keywords: cfg.Chat.ContextKeywords},
	}

	sessionService := service.NewSessionService(func(id string) *service.Dashboard {
		return service.NewDashboard(id, service.DashboardDeps{
			Predictor:    backend,
			Chat:         backend,
			Stats:        contentService,
			Charts:       charts,
			RenderOpts:   renderOpts,
			ChatOpts:     chatOpts,
			PredictError: cfg.Result.PredictErrorMessage,
		}, zapLogger)
	}, cfg.Session.IdleTTL, cfg.Session.ReapEvery, zapLogger)
	defer sessionService.Stop()

	// 初始化路由
	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: handler.NewRouter(cfg, sessionService, contentService, zapLogger),
	}

	// 启动服务
	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("neuroscan-dashboard 服务启动成功", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zapLogger.Info("收到退出信号，正在关闭服务...")
	case err := <-errCh:
		zapLogger.Error("服务启动失败", zap.Error(err))
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("服务关闭失败", zap.Error(err))
	}
	zapLogger.Info("neuroscan-dashboard 服务已停止")
}
