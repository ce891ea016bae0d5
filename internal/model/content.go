package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// TrainingHistory 每个 epoch 的训练指标，四个数组等长
type TrainingHistory struct {
	Accuracy    []float64 `json:"accuracy"`
	ValAccuracy []float64 `json:"val_accuracy"`
	Loss        []float64 `json:"loss"`
	ValLoss     []float64 `json:"val_loss"`
}

// Epochs 返回可对齐展示的 epoch 数（取最短数组）
func (h TrainingHistory) Epochs() int {
	n := len(h.Accuracy)
	for _, s := range [][]float64{h.ValAccuracy, h.Loss, h.ValLoss} {
		if len(s) < n {
			n = len(s)
		}
	}
	return n
}

// TrainingSummary 训练汇总
type TrainingSummary struct {
	MaxAccuracy    float64 `json:"max_accuracy"`
	MaxValAccuracy float64 `json:"max_val_accuracy"`
	FinalLoss      float64 `json:"final_loss"`
	Epochs         int     `json:"epochs"`
}

// TrainingStats GET /stats
type TrainingStats struct {
	History TrainingHistory `json:"history"`
	Summary TrainingSummary `json:"summary"`
}

// LayerInfo 模型层描述
type LayerInfo struct {
	Type        string     `json:"type"`
	OutputShape FlexString `json:"output_shape"`
	Trainable   bool       `json:"trainable"`
}

// ModelStat 模型统计项
type ModelStat struct {
	Label string     `json:"label"`
	Value FlexString `json:"value"`
}

// ModelInfo GET /model-info
type ModelInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type,omitempty"`
	Description string      `json:"description"`
	Params      FlexString  `json:"params"`
	Layers      []LayerInfo `json:"layers,omitempty"`
	Stats       []ModelStat `json:"stats,omitempty"`
}

// TumorInfo 肿瘤类型科普卡片
type TumorInfo struct {
	Name             string   `json:"name"`
	ShortDescription string   `json:"short_description"`
	Description      string   `json:"description"`
	Types            []string `json:"types"`
	Symptoms         []string `json:"symptoms"`
	RiskFactors      []string `json:"risk_factors"`
	TreatmentOptions []string `json:"treatment_options"`
	Prognosis        string   `json:"prognosis"`
	Prevalence       string   `json:"prevalence"`
	TypicalAge       string   `json:"typical_age"`
	Severity         string   `json:"severity"`
	Color            string   `json:"color"`
}

// FAQ 常见问题
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// EducationalContent GET /educational-content
type EducationalContent struct {
	TumorTypes map[string]TumorInfo `json:"tumor_types"`
	FAQs       []FAQ                `json:"faqs"`
}

// FlexString 兼容数字或字符串的 JSON 字段（例如 "1,234,567" 或 1234567）
type FlexString string

// UnmarshalJSON 实现 json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(n.String())
		return nil
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err == nil {
		// output_shape 可能是数组，例如 [null, 148, 148, 32]
		*f = FlexString(compactShape(list))
		return nil
	}
	return fmt.Errorf("不支持的字段值: %s", string(data))
}

func compactShape(parts []json.RawMessage) string {
	var buf bytes.Buffer
	buf.WriteByte('(')
	for i, p := range parts {
		if i > 0 {
			buf.WriteString(", ")
		}
		s := string(bytes.TrimSpace(p))
		if s == "null" {
			s = "None"
		} else if uq, err := strconv.Unquote(s); err == nil {
			s = uq
		}
		buf.WriteString(s)
	}
	buf.WriteByte(')')
	return buf.String()
}
