package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/neuroscan/neuroscan-go/internal/model"
)

// Tone 结果的定性样式
type Tone string

const (
	ToneFavorable  Tone = "favorable"
	ToneConcerning Tone = "concerning"
)

// Bar 单个类别的得分条
type Bar struct {
	Label   string  `json:"label"`
	Score   float64 `json:"score"`
	Percent string  `json:"percent"` // 例如 "92.3%"
	Width   float64 `json:"width"`   // 0-100，用于绘制
}

// RadarPoint 雷达图顶点，X/Y 为单位圆上按得分缩放后的坐标
type RadarPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// ResultView 一次结果的展示数据
type ResultView struct {
	Title          string       `json:"title"`
	ConfidenceText string       `json:"confidenceText"`
	Tone           Tone         `json:"tone"`
	Bars           []Bar        `json:"bars"`
	Radar          []RadarPoint `json:"radar"`
	InfoKey        string       `json:"infoKey,omitempty"`
	LowConfidence  bool         `json:"lowConfidence"`
}

// Options 渲染规则
type Options struct {
	Labels             []string
	AbsencePhrases     []string
	LowConfidenceBelow float64
}

// DefaultOptions 默认渲染规则
func DefaultOptions() Options {
	return Options{
		Labels:             model.Labels,
		AbsencePhrases:     []string{"no tumor", "no tumour"},
		LowConfidenceBelow: 70,
	}
}

// BuildView 根据分类结果生成展示数据，不产生副作用
func BuildView(res model.ScanResult, opts Options) ResultView {
	labels := opts.Labels
	if len(labels) == 0 {
		labels = model.Labels
	}

	n := len(res.AllScores)
	if len(labels) < n {
		n = len(labels)
	}

	view := ResultView{
		Title:          res.Prediction,
		ConfidenceText: "Confidence: " + strconv.FormatFloat(res.Confidence, 'f', -1, 64) + "%",
		Tone:           ToneOf(res.Prediction, opts.AbsencePhrases),
		Bars:           make([]Bar, 0, n),
		Radar:          make([]RadarPoint, 0, n),
		InfoKey:        InfoKey(res.Prediction),
		LowConfidence:  opts.LowConfidenceBelow > 0 && res.Confidence < opts.LowConfidenceBelow,
	}

	for i := 0; i < n; i++ {
		score := res.AllScores[i]
		view.Bars = append(view.Bars, Bar{
			Label:   labels[i],
			Score:   score,
			Percent: FormatPercent(score),
			Width:   clamp(score*100, 0, 100),
		})
	}
	view.Radar = RadarPoints(labels[:n], res.AllScores[:n])
	return view
}

// ToneOf 标签包含任一“无肿瘤”短语（不区分大小写）时为 favorable，其余一律 concerning
func ToneOf(prediction string, absencePhrases []string) Tone {
	lower := strings.ToLower(prediction)
	for _, p := range absencePhrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" && strings.Contains(lower, p) {
			return ToneFavorable
		}
	}
	return ToneConcerning
}

// FormatPercent 概率转百分比文本，保留一位小数
func FormatPercent(score float64) string {
	return fmt.Sprintf("%.1f%%", score*100)
}

// RadarPoints 第一个顶点在正上方，顺时针均匀分布
func RadarPoints(labels []string, scores []float64) []RadarPoint {
	n := len(scores)
	if len(labels) < n {
		n = len(labels)
	}
	points := make([]RadarPoint, 0, n)
	for i := 0; i < n; i++ {
		angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		v := clamp(scores[i], 0, 1)
		points = append(points, RadarPoint{
			Label: labels[i],
			Value: scores[i],
			X:     round4(v * math.Cos(angle)),
			Y:     round4(v * math.Sin(angle)),
		})
	}
	return points
}

// InfoKey 预测标签对应的科普卡片 key，例如 "Glioma Tumour" -> "glioma"，"No Tumour" -> "normal"
func InfoKey(prediction string) string {
	key := strings.ToLower(strings.TrimSpace(prediction))
	key = strings.ReplaceAll(key, " tumour", "")
	key = strings.ReplaceAll(key, " tumor", "")
	if key == "no" {
		key = "normal"
	}
	return key
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
