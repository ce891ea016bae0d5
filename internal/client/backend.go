package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/neuroscan/neuroscan-go/internal/model"
	"go.uber.org/zap"
)

var (
	// ErrMalformedResponse 响应成功但内容不符合约定
	ErrMalformedResponse = errors.New("推理服务响应格式异常")
)

// APIError 推理服务返回的非 2xx 响应
type APIError struct {
	Path       string
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s 返回错误 %d: %s", e.Path, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s 返回错误 %d", e.Path, e.StatusCode)
}

// UserMessage 返回可展示给用户的错误文案：优先使用服务端 detail，否则使用 fallback
func UserMessage(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Detail) != "" {
		return apiErr.Detail
	}
	return fallback
}

// BackendClient 推理服务客户端
type BackendClient struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewBackendClient 创建推理服务客户端，timeout 为 0 时不设置传输层超时
func NewBackendClient(baseURL string, timeout time.Duration, logger *zap.Logger) *BackendClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		c.SetTimeout(timeout)
	}
	return &BackendClient{http: c, logger: logger}
}

// Predict 上传影像并获取分类结果
func (c *BackendClient) Predict(ctx context.Context, filename string, image io.Reader) (*model.ScanResult, error) {
	c.logger.Info("提交影像预测", zap.String("filename", filename))

	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, image).
		Post("/predict")
	if err != nil {
		return nil, fmt.Errorf("请求 /predict 失败: %w", err)
	}
	if err := checkStatus("/predict", resp); err != nil {
		return nil, err
	}

	var result model.ScanResult
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("解析 /predict 响应失败: %w", errors.Join(ErrMalformedResponse, err))
	}
	if strings.TrimSpace(result.Prediction) == "" {
		return nil, fmt.Errorf("/predict 缺少 prediction: %w", ErrMalformedResponse)
	}

	c.logger.Info("预测完成",
		zap.String("prediction", result.Prediction),
		zap.Float64("confidence", result.Confidence))
	return &result, nil
}

// Chat 发送聊天消息
func (c *BackendClient) Chat(ctx context.Context, req model.ChatRequest) (*model.ChatReply, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		Post("/chat")
	if err != nil {
		return nil, fmt.Errorf("请求 /chat 失败: %w", err)
	}
	if err := checkStatus("/chat", resp); err != nil {
		return nil, err
	}

	var reply model.ChatReply
	if err := json.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, fmt.Errorf("解析 /chat 响应失败: %w", errors.Join(ErrMalformedResponse, err))
	}
	if strings.TrimSpace(reply.Response) == "" {
		return nil, fmt.Errorf("/chat 缺少 response: %w", ErrMalformedResponse)
	}
	return &reply, nil
}

// Stats 获取训练历史
func (c *BackendClient) Stats(ctx context.Context) (*model.TrainingStats, error) {
	var out model.TrainingStats
	if err := c.getJSON(ctx, "/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ModelInfo 获取模型结构信息
func (c *BackendClient) ModelInfo(ctx context.Context) (*model.ModelInfo, error) {
	var out model.ModelInfo
	if err := c.getJSON(ctx, "/model-info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// EducationalContent 获取科普内容
func (c *BackendClient) EducationalContent(ctx context.Context) (*model.EducationalContent, error) {
	var out model.EducationalContent
	if err := c.getJSON(ctx, "/educational-content", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *BackendClient) getJSON(ctx context.Context, path string, out interface{}) error {
	c.logger.Debug("请求推理服务", zap.String("path", path))

	resp, err := c.http.R().SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", path, err)
	}
	if err := checkStatus(path, resp); err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("解析 %s 响应失败: %w", path, errors.Join(ErrMalformedResponse, err))
	}
	return nil
}

func checkStatus(path string, resp *resty.Response) error {
	if resp.StatusCode() >= 200 && resp.StatusCode() < 300 {
		return nil
	}
	apiErr := &APIError{Path: path, StatusCode: resp.StatusCode()}
	var body model.ErrorBody
	if err := json.Unmarshal(resp.Body(), &body); err == nil {
		apiErr.Detail = body.Detail
	}
	return apiErr
}
