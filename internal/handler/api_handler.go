package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/neuroscan/neuroscan-go/internal/client"
	"github.com/neuroscan/neuroscan-go/internal/middleware"
	"github.com/neuroscan/neuroscan-go/internal/service"
	"go.uber.org/zap"
)

// APIHandler 预测、结果、图表与只读内容
type APIHandler struct {
	sessions *service.SessionService
	content  *service.ContentService
	logger   *zap.Logger
}

// NewAPIHandler 创建 API 处理器
func NewAPIHandler(sessions *service.SessionService, content *service.ContentService, logger *zap.Logger) *APIHandler {
	return &APIHandler{
		sessions: sessions,
		content:  content,
		logger:   logger,
	}
}

// Predict 上传影像并返回结果展示数据
func (h *APIHandler) Predict(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read file"})
		return
	}
	defer f.Close()

	d := h.sessions.GetOrCreate(middleware.SessionID(c))
	view, err := d.Upload(c.Request.Context(), fh.Filename, f)
	var predictErr *service.PredictError
	switch {
	case errors.Is(err, service.ErrSuperseded):
		c.JSON(http.StatusConflict, gin.H{"error": "superseded by a newer upload"})
	case errors.As(err, &predictErr):
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": predictErr.Message})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, view)
	}
}

// Result 当前结果面板状态
func (h *APIHandler) Result(c *gin.Context) {
	d := h.sessions.GetOrCreate(middleware.SessionID(c))
	c.JSON(http.StatusOK, gin.H{
		"panel":  d.Panel.State(),
		"result": d.Result.Current(),
	})
}

// Chart 输出 PNG 图表：scores、radar 来自当前结果，accuracy、loss 来自训练历史
func (h *APIHandler) Chart(c *gin.Context) {
	name := strings.TrimSuffix(c.Param("file"), ".png")
	d := h.sessions.GetOrCreate(middleware.SessionID(c))

	var (
		contentType string
		data        []byte
		ok          bool
	)
	switch name {
	case "scores", "radar":
		contentType, data, ok = d.Panel.VisualBytes(name)
	case "accuracy", "loss":
		v, err := d.TrainingChart(c.Request.Context(), name)
		if err != nil {
			h.contentError(c, err, "Training history unavailable")
			return
		}
		contentType, data = v.ContentType(), v.Bytes()
		ok = len(data) > 0
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, data)
}

// Stats 训练历史
func (h *APIHandler) Stats(c *gin.Context) {
	out, err := h.content.Stats(c.Request.Context())
	if err != nil {
		h.contentError(c, err, "Training history unavailable")
		return
	}
	c.JSON(http.StatusOK, out)
}

// ModelInfo 模型结构
func (h *APIHandler) ModelInfo(c *gin.Context) {
	out, err := h.content.ModelInfo(c.Request.Context())
	if err != nil {
		h.contentError(c, err, "Model information unavailable")
		return
	}
	c.JSON(http.StatusOK, out)
}

// EducationalContent 科普内容
func (h *APIHandler) EducationalContent(c *gin.Context) {
	out, err := h.content.EducationalContent(c.Request.Context())
	if err != nil {
		h.contentError(c, err, "Educational content unavailable")
		return
	}
	c.JSON(http.StatusOK, out)
}

// Health 健康检查
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "UP",
		"service":         c.GetString("service_name"),
		"sessions":        h.sessions.Count(),
		"online_sessions": h.sessions.OnlineCount(),
	})
}

// contentError 推理服务返回的 4xx 原样透出，其余统一 502
func (h *APIHandler) contentError(c *gin.Context, err error, fallback string) {
	_ = c.Error(err)
	status := http.StatusBadGateway
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		status = apiErr.StatusCode
	}
	c.JSON(status, gin.H{"error": client.UserMessage(err, fallback)})
}
