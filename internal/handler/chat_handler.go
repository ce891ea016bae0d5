package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/neuroscan/neuroscan-go/internal/middleware"
	"github.com/neuroscan/neuroscan-go/internal/service"
	"go.uber.org/zap"
)

type chatRequest struct {
	Message        string `json:"message"`
	IncludeContext *bool  `json:"include_context"`
}

type suggestionRequest struct {
	Question string `json:"question"`
}

// ChatHandler 聊天接口，每个请求等到回复后返回最新快照
type ChatHandler struct {
	sessions *service.SessionService
	logger   *zap.Logger
}

// NewChatHandler 创建聊天处理器
func NewChatHandler(sessions *service.SessionService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{sessions: sessions, logger: logger}
}

// Send 发送自由输入
func (h *ChatHandler) Send(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	d := h.sessions.GetOrCreate(middleware.SessionID(c))
	include := d.Chat.IncludeContextFor(req.Message)
	if req.IncludeContext != nil {
		include = *req.IncludeContext
	}
	h.reply(c, d, d.Chat.Send(c.Request.Context(), req.Message, include))
}

// AskResult 询问当前结果
func (h *ChatHandler) AskResult(c *gin.Context) {
	d := h.sessions.GetOrCreate(middleware.SessionID(c))
	h.reply(c, d, d.Chat.AskAboutResult(c.Request.Context()))
}

// Suggestion 点击建议问题
func (h *ChatHandler) Suggestion(c *gin.Context) {
	var req suggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	d := h.sessions.GetOrCreate(middleware.SessionID(c))
	h.reply(c, d, d.Chat.ClickSuggestion(c.Request.Context(), req.Question))
}

// Reset 开始新对话
func (h *ChatHandler) Reset(c *gin.Context) {
	d := h.sessions.GetOrCreate(middleware.SessionID(c))
	d.Chat.Reset()
	c.JSON(http.StatusOK, d.Chat.Snapshot())
}

// History 当前对话
func (h *ChatHandler) History(c *gin.Context) {
	d := h.sessions.GetOrCreate(middleware.SessionID(c))
	c.JSON(http.StatusOK, d.Chat.Snapshot())
}

func (h *ChatHandler) reply(c *gin.Context, d *service.Dashboard, err error) {
	if errors.Is(err, service.ErrChatBusy) {
		c.JSON(http.StatusConflict, gin.H{"error": "a reply is still pending"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, d.Chat.Snapshot())
}
