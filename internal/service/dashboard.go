package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/neuroscan/neuroscan-go/internal/client"
	"github.com/neuroscan/neuroscan-go/internal/model"
	"github.com/neuroscan/neuroscan-go/internal/render"
	"go.uber.org/zap"
)

var (
	// ErrSuperseded 预测回复到达时已有更新的上传
	ErrSuperseded = errors.New("预测结果已被更新的上传取代")
)

// PredictError 预测失败，Message 是展示给用户的文案
type PredictError struct {
	Message string
	Err     error
}

func (e *PredictError) Error() string {
	return fmt.Sprintf("预测失败: %v", e.Err)
}

func (e *PredictError) Unwrap() error {
	return e.Err
}

// Predictor 影像分类
type Predictor interface {
	Predict(ctx context.Context, filename string, image io.Reader) (*model.ScanResult, error)
}

// StatsSource 训练历史
type StatsSource interface {
	Stats(ctx context.Context) (*model.TrainingStats, error)
}

// DashboardDeps 创建 Dashboard 所需的依赖
type DashboardDeps struct {
	Predictor    Predictor
	Chat         ChatBackend
	Stats        StatsSource
	Charts       render.ChartRenderer
	RenderOpts   render.Options
	ChatOpts     ChatOptions
	PredictError string
}

// Dashboard 单个页面会话：结果上下文、聊天、结果面板和训练曲线
type Dashboard struct {
	ID     string
	Result *ResultContext
	Chat   *ChatSession
	Panel  *render.ResultPanel

	deps   DashboardDeps
	logger *zap.Logger

	mu         sync.Mutex
	sink       EventSink
	predictGen uint64
	training   []render.Visual

	// 不受 mu 保护，SessionService 持有自身锁时也会读写
	lastSeen atomic.Int64
}

// NewDashboard 创建会话
func NewDashboard(id string, deps DashboardDeps, logger *zap.Logger) *Dashboard {
	logger = logger.With(zap.String("sessionId", id))
	results := &ResultContext{}
	d := &Dashboard{
		ID:     id,
		Result: results,
		Chat:   NewChatSession(deps.Chat, results, deps.ChatOpts, logger),
		Panel:  render.NewResultPanel(deps.Charts, deps.RenderOpts, logger),
		deps:   deps,
		logger: logger,
	}
	d.Touch()
	return d
}

// SetSink 同时替换聊天和结果事件的接收方
func (d *Dashboard) SetSink(sink EventSink) {
	d.mu.Lock()
	d.sink = sink
	d.mu.Unlock()
	d.Chat.SetSink(sink)
}

// Touch 记录最近一次活动
func (d *Dashboard) Touch() {
	d.lastSeen.Store(time.Now().UnixNano())
}

// LastSeen 最近一次活动时间
func (d *Dashboard) LastSeen() time.Time {
	return time.Unix(0, d.lastSeen.Load())
}

// Upload 提交影像并渲染结果。
// 成功时整体替换 ResultContext；失败时 ResultContext 保持不变，面板显示错误，返回 *PredictError；
// 期间若有更新的上传，本次回复被丢弃并返回 ErrSuperseded
func (d *Dashboard) Upload(ctx context.Context, filename string, image io.Reader) (render.ResultView, error) {
	d.mu.Lock()
	d.predictGen++
	gen := d.predictGen
	d.mu.Unlock()

	res, err := d.deps.Predictor.Predict(ctx, filename, image)

	d.mu.Lock()
	defer d.mu.Unlock()

	if gen != d.predictGen {
		d.logger.Info("丢弃过期的预测结果", zap.Uint64("generation", gen), zap.Uint64("current", d.predictGen))
		return render.ResultView{}, ErrSuperseded
	}

	if err != nil {
		msg := client.UserMessage(err, d.deps.PredictError)
		d.logger.Error("预测失败", zap.String("filename", filename), zap.Error(err))
		d.Panel.ShowError(msg)
		d.publishLocked(model.Event{Type: model.EventError, Error: msg})
		return render.ResultView{}, &PredictError{Message: msg, Err: err}
	}

	d.Result.Set(*res)
	view := d.Panel.Show(*res)
	d.publishLocked(model.Event{Type: model.EventResult, Payload: view})
	return view, nil
}

// TrainingCharts 训练曲线每个会话只生成一次，失败后可重试
func (d *Dashboard) TrainingCharts(ctx context.Context) ([]render.Visual, error) {
	d.mu.Lock()
	if d.training != nil {
		out := d.training
		d.mu.Unlock()
		return out, nil
	}
	d.mu.Unlock()

	stats, err := d.deps.Stats.Stats(ctx)
	if err != nil {
		d.logger.Error("加载训练历史失败", zap.Error(err))
		return nil, err
	}
	visuals, err := d.deps.Charts.RenderTrainingCurves(stats.History)
	if err != nil {
		return nil, fmt.Errorf("生成训练曲线失败: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.training == nil {
		d.training = visuals
	}
	return d.training, nil
}

// TrainingChart 按名称取训练曲线（accuracy、loss）
func (d *Dashboard) TrainingChart(ctx context.Context, name string) (render.Visual, error) {
	visuals, err := d.TrainingCharts(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range visuals {
		if v.Name() == name {
			return v, nil
		}
	}
	return nil, fmt.Errorf("未知的训练曲线: %s", name)
}

// Close 释放图表资源
func (d *Dashboard) Close() {
	d.SetSink(nil)
	d.Chat.Reset()
	d.Panel.Clear()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, v := range d.training {
		v.Destroy()
	}
	d.training = nil
}

func (d *Dashboard) publishLocked(evt model.Event) {
	if d.sink == nil {
		return
	}
	evt.Timestamp = time.Now()
	d.sink.Publish(evt)
}
