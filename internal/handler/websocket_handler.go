package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/neuroscan/neuroscan-go/internal/middleware"
	"github.com/neuroscan/neuroscan-go/internal/model"
	"github.com/neuroscan/neuroscan-go/internal/service"
	"go.uber.org/zap"
)

// WebSocketHandler WebSocket 处理器：推送会话事件，接收页面指令
type WebSocketHandler struct {
	sessions *service.SessionService
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器，allowedOrigin 为空或 "*" 时不校验 Origin
func NewWebSocketHandler(sessions *service.SessionService, allowedOrigin string, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
		logger: logger,
	}
}

// HandleWebSocket WebSocket 连接入口
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	sessionID := middleware.SessionID(c)

	// 升级为 WebSocket 连接
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	d := h.sessions.GetOrCreate(sessionID)
	cc := h.sessions.Attach(sessionID, conn, c.ClientIP())
	defer h.sessions.Detach(sessionID, cc)

	h.logger.Info("WebSocket 连接建立", zap.String("sessionId", sessionID))

	// 先推送当前状态，页面重连后可以直接恢复
	_ = h.sessions.SendEvent(sessionID, model.Event{
		Type:      model.EventAck,
		Payload:   gin.H{"chat": d.Chat.Snapshot(), "panel": d.Panel.State()},
		Timestamp: time.Now(),
	})

	// 消息循环
	for {
		var cmd model.Command
		err := conn.ReadJSON(&cmd)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Error("WebSocket 读取错误", zap.String("sessionId", sessionID), zap.Error(err))
			}
			break
		}

		h.handleCommand(sessionID, d, &cmd)
	}

	h.logger.Info("WebSocket 连接断开", zap.String("sessionId", sessionID))
}

// handleCommand 处理页面指令，聊天类指令异步执行，结果通过事件推送
func (h *WebSocketHandler) handleCommand(sessionID string, d *service.Dashboard, cmd *model.Command) {
	d.Touch()

	switch cmd.Type {
	case "CHAT":
		include := d.Chat.IncludeContextFor(cmd.Content)
		if cmd.IncludeContext != nil {
			include = *cmd.IncludeContext
		}
		go h.run(sessionID, func(ctx context.Context) error {
			return d.Chat.Send(ctx, cmd.Content, include)
		})

	case "SUGGESTION":
		go h.run(sessionID, func(ctx context.Context) error {
			return d.Chat.ClickSuggestion(ctx, cmd.Content)
		})

	case "ASK_RESULT":
		go h.run(sessionID, d.Chat.AskAboutResult)

	case "RESET":
		d.Chat.Reset()

	case "HEARTBEAT":
		// 更新心跳时间
		h.sessions.UpdateHeartbeat(sessionID)
		h.logger.Debug("收到心跳", zap.String("sessionId", sessionID))

	default:
		h.logger.Warn("未知指令类型",
			zap.String("sessionId", sessionID),
			zap.String("type", cmd.Type))
		_ = h.sessions.SendEvent(sessionID, model.Event{
			Type:      model.EventError,
			Error:     "unknown command: " + cmd.Type,
			Timestamp: time.Now(),
		})
	}
}

// run 执行一次聊天指令，不跟随连接的生命周期，断线后回复仍会记入会话
func (h *WebSocketHandler) run(sessionID string, fn func(ctx context.Context) error) {
	err := fn(context.Background())
	if errors.Is(err, service.ErrChatBusy) {
		_ = h.sessions.SendEvent(sessionID, model.Event{
			Type:      model.EventError,
			Error:     "a reply is still pending",
			Timestamp: time.Now(),
		})
	}
}
