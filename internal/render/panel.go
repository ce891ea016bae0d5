package render

import (
	"sync"

	"github.com/neuroscan/neuroscan-go/internal/model"
	"go.uber.org/zap"
)

// PanelState 结果面板当前可见状态
type PanelState struct {
	Placeholder bool        `json:"placeholder"`
	View        *ResultView `json:"view,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// ResultPanel 结果面板（每个会话一份），负责把结果替换式地渲染出来
type ResultPanel struct {
	charts ChartRenderer
	opts   Options
	logger *zap.Logger

	mu     sync.RWMutex
	view   *ResultView
	errMsg string
	scores Visual
	radar  Visual
}

// NewResultPanel 创建结果面板
func NewResultPanel(charts ChartRenderer, opts Options, logger *zap.Logger) *ResultPanel {
	return &ResultPanel{charts: charts, opts: opts, logger: logger}
}

// Show 渲染一次成功的结果，旧的柱状图与雷达图整体替换
func (p *ResultPanel) Show(res model.ScanResult) ResultView {
	view := BuildView(res, p.opts)
	labels := make([]string, len(view.Bars))
	scores := make([]float64, len(view.Bars))
	for i, b := range view.Bars {
		labels[i] = b.Label
		scores[i] = b.Score
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.teardownLocked()
	p.view = &view
	p.errMsg = ""

	if p.charts == nil {
		return view
	}
	if v, err := p.charts.RenderScoreChart(labels, scores); err != nil {
		p.logger.Warn("得分图渲染失败", zap.Error(err))
	} else {
		p.scores = v
	}
	if v, err := p.charts.RenderRadar(labels, scores); err != nil {
		p.logger.Warn("雷达图渲染失败", zap.Error(err))
	} else {
		p.radar = v
	}
	return view
}

// ShowError 展示预测失败信息，替换占位内容并隐藏旧结果
func (p *ResultPanel) ShowError(msg string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked()
	p.view = nil
	p.errMsg = msg
}

// Clear 回到占位状态
func (p *ResultPanel) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked()
	p.view = nil
	p.errMsg = ""
}

// State 当前面板状态
func (p *ResultPanel) State() PanelState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st := PanelState{Error: p.errMsg}
	if p.view != nil {
		v := *p.view
		st.View = &v
	}
	st.Placeholder = st.View == nil && st.Error == ""
	return st
}

// Visual 按名称取当前图表（scores、radar）。
// 返回的实例在下一次 Show 时会被销毁，输出内容请用 VisualBytes
func (p *ResultPanel) Visual(name string) (Visual, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.visualLocked(name)
}

// VisualBytes 在持有锁时复制图表内容，不受并发重新渲染影响
func (p *ResultPanel) VisualBytes(name string) (contentType string, data []byte, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.visualLocked(name)
	if !ok {
		return "", nil, false
	}
	data = v.Bytes()
	if len(data) == 0 {
		return "", nil, false
	}
	return v.ContentType(), append([]byte(nil), data...), true
}

func (p *ResultPanel) visualLocked(name string) (Visual, bool) {
	switch name {
	case "scores":
		return p.scores, p.scores != nil
	case "radar":
		return p.radar, p.radar != nil
	}
	return nil, false
}

func (p *ResultPanel) teardownLocked() {
	if p.radar != nil {
		p.radar.Destroy()
		p.radar = nil
	}
	if p.scores != nil {
		p.scores.Destroy()
		p.scores = nil
	}
}
