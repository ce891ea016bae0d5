package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/neuroscan/neuroscan-go/internal/config"
	"github.com/neuroscan/neuroscan-go/internal/middleware"
	"github.com/neuroscan/neuroscan-go/internal/service"
	"go.uber.org/zap"
)

// NewRouter 注册全部路由
func NewRouter(cfg *config.Config, sessions *service.SessionService, content *service.ContentService, logger *zap.Logger) *gin.Engine {
	apiHandler := NewAPIHandler(sessions, content, logger)
	chatHandler := NewChatHandler(sessions, logger)
	wsHandler := NewWebSocketHandler(sessions, cfg.Server.AllowedOrigin, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigin))
	r.Use(middleware.Session(cfg.Session.CookieName, cfg.Session.IdleTTL))
	r.Use(middleware.RequestLogger(logger))

	// WebSocket 端点（原生 WebSocket）
	r.GET("/ws", wsHandler.HandleWebSocket)

	api := r.Group("/api")
	{
		api.POST("/predict", apiHandler.Predict)
		api.GET("/result", apiHandler.Result)
		api.GET("/charts/:file", apiHandler.Chart)

		api.GET("/stats", apiHandler.Stats)
		api.GET("/model-info", apiHandler.ModelInfo)
		api.GET("/educational-content", apiHandler.EducationalContent)

		api.GET("/chat", chatHandler.History)
		api.POST("/chat", chatHandler.Send)
		api.POST("/chat/ask-result", chatHandler.AskResult)
		api.POST("/chat/suggestion", chatHandler.Suggestion)
		api.POST("/chat/reset", chatHandler.Reset)

		api.GET("/health", func(c *gin.Context) {
			c.Set("service_name", cfg.Server.Name)
			apiHandler.Health(c)
		})
	}

	return r
}
