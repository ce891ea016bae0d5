package render

import (
	"bytes"
	"fmt"
	"math"
	"sync"

	"github.com/neuroscan/neuroscan-go/internal/model"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Visual 一个已渲染的图表实例
type Visual interface {
	Name() string
	ContentType() string
	Bytes() []byte
	Destroy()
}

// ChartRenderer 图表渲染器，结果面板只依赖这个接口
type ChartRenderer interface {
	RenderScoreChart(labels []string, scores []float64) (Visual, error)
	RenderRadar(labels []string, scores []float64) (Visual, error)
	RenderTrainingCurves(history model.TrainingHistory) ([]Visual, error)
}

var (
	colorIndigo  = drawing.ColorFromHex("4f46e5")
	colorEmerald = drawing.ColorFromHex("10b981")
	colorRed     = drawing.ColorFromHex("ef4444")
	colorAmber   = drawing.ColorFromHex("f59e0b")
	colorGrid    = drawing.ColorFromHex("94a3b8")
)

// pngVisual PNG 图片，Bytes 返回副本
type pngVisual struct {
	name string
	mu   sync.RWMutex
	data []byte
}

func (v *pngVisual) Name() string        { return v.name }
func (v *pngVisual) ContentType() string { return "image/png" }

func (v *pngVisual) Bytes() []byte {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return append([]byte(nil), v.data...)
}

func (v *pngVisual) Destroy() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data = nil
}

// PNGRenderer 基于 go-chart 的 PNG 渲染器
type PNGRenderer struct {
	Width  int
	Height int
}

// NewPNGRenderer 创建 PNG 渲染器
func NewPNGRenderer(width, height int) *PNGRenderer {
	return &PNGRenderer{Width: width, Height: height}
}

// RenderScoreChart 各类别得分柱状图（百分比）
func (r *PNGRenderer) RenderScoreChart(labels []string, scores []float64) (Visual, error) {
	n := minLen(labels, scores)
	if n == 0 {
		return nil, fmt.Errorf("没有可绘制的得分")
	}

	bars := make([]chart.Value, 0, n)
	for i := 0; i < n; i++ {
		bars = append(bars, chart.Value{
			Label: labels[i],
			Value: clamp(scores[i]*100, 0, 100),
			Style: chart.Style{FillColor: colorIndigo, StrokeColor: colorIndigo},
		})
	}

	graph := chart.BarChart{
		Title:      "Class probabilities",
		Width:      r.Width,
		Height:     r.Height,
		BarWidth:   r.Width / (2 * n),
		BarSpacing: r.Width / (4 * n),
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 10, Bottom: 10},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f%%", f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("渲染得分图失败: %w", err)
	}
	return &pngVisual{name: "scores", data: buf.Bytes()}, nil
}

// RenderRadar 得分雷达图
func (r *PNGRenderer) RenderRadar(labels []string, scores []float64) (Visual, error) {
	points := RadarPoints(labels, scores)
	if len(points) < 3 {
		return nil, fmt.Errorf("雷达图至少需要 3 个维度，当前 %d", len(points))
	}

	rd, err := chart.PNG(r.Width, r.Height)
	if err != nil {
		return nil, fmt.Errorf("创建画布失败: %w", err)
	}

	cx, cy := r.Width/2, r.Height/2
	radius := float64(minInt(r.Width, r.Height))/2 - 40
	at := func(x, y float64) (int, int) {
		return cx + int(math.Round(x*radius)), cy + int(math.Round(y*radius))
	}

	// 网格：外框和轴线
	rd.SetStrokeColor(colorGrid)
	rd.SetStrokeWidth(1)
	for _, ring := range []float64{0.5, 1} {
		for i := range points {
			angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(len(points))
			x, y := at(ring*math.Cos(angle), ring*math.Sin(angle))
			if i == 0 {
				rd.MoveTo(x, y)
			} else {
				rd.LineTo(x, y)
			}
		}
		rd.Close()
		rd.Stroke()
	}
	for i := range points {
		angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(len(points))
		x, y := at(math.Cos(angle), math.Sin(angle))
		rd.MoveTo(cx, cy)
		rd.LineTo(x, y)
		rd.Stroke()
	}

	// 得分多边形
	rd.SetStrokeColor(colorIndigo)
	rd.SetFillColor(colorIndigo.WithAlpha(64))
	rd.SetStrokeWidth(2)
	for i, p := range points {
		x, y := at(p.X, p.Y)
		if i == 0 {
			rd.MoveTo(x, y)
		} else {
			rd.LineTo(x, y)
		}
	}
	rd.Close()
	rd.FillStroke()

	if font, err := chart.GetDefaultFont(); err == nil {
		rd.SetFont(font)
		rd.SetFontColor(colorGrid)
		rd.SetFontSize(10)
		for i, p := range points {
			angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(len(points))
			x, y := at(1.12*math.Cos(angle), 1.12*math.Sin(angle))
			label := p.Label + " " + FormatPercent(p.Value)
			box := rd.MeasureText(label)
			rd.Text(label, x-box.Width()/2, y+box.Height()/2)
		}
	}

	var buf bytes.Buffer
	if err := rd.Save(&buf); err != nil {
		return nil, fmt.Errorf("渲染雷达图失败: %w", err)
	}
	return &pngVisual{name: "radar", data: buf.Bytes()}, nil
}

// RenderTrainingCurves 训练/验证准确率与损失曲线，返回 accuracy、loss 两张图
func (r *PNGRenderer) RenderTrainingCurves(h model.TrainingHistory) ([]Visual, error) {
	epochs := h.Epochs()
	if epochs < 2 {
		return nil, fmt.Errorf("训练历史不足以绘图: %d 个 epoch", epochs)
	}
	xs := make([]float64, epochs)
	for i := range xs {
		xs[i] = float64(i + 1) // epoch 从 1 开始展示
	}

	acc, err := r.lineChart("accuracy", "Accuracy", xs,
		series("Training", h.Accuracy[:epochs], colorIndigo),
		series("Validation", h.ValAccuracy[:epochs], colorEmerald))
	if err != nil {
		return nil, err
	}
	loss, err := r.lineChart("loss", "Loss", xs,
		series("Training", h.Loss[:epochs], colorRed),
		series("Validation", h.ValLoss[:epochs], colorAmber))
	if err != nil {
		return nil, err
	}
	return []Visual{acc, loss}, nil
}

type namedSeries struct {
	name  string
	ys    []float64
	color drawing.Color
}

func series(name string, ys []float64, color drawing.Color) namedSeries {
	return namedSeries{name: name, ys: ys, color: color}
}

func (r *PNGRenderer) lineChart(name, title string, xs []float64, ss ...namedSeries) (Visual, error) {
	graph := chart.Chart{
		Title:      title,
		Width:      r.Width,
		Height:     r.Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 12}},
		XAxis:      chart.XAxis{Name: "Epoch"},
		YAxis:      chart.YAxis{Name: title},
	}
	for _, s := range ss {
		graph.Series = append(graph.Series, chart.ContinuousSeries{
			Name:    s.name,
			XValues: xs,
			YValues: s.ys,
			Style:   chart.Style{StrokeColor: s.color, StrokeWidth: 2},
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("渲染 %s 曲线失败: %w", name, err)
	}
	return &pngVisual{name: name, data: buf.Bytes()}, nil
}

func minLen(labels []string, scores []float64) int {
	return minInt(len(labels), len(scores))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
