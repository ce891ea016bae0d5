package model

// Labels 分类标签，顺序与 all_scores 的下标一一对应
var Labels = []string{"Glioma", "Meningioma", "Normal", "Pituitary"}

// ScanResult 推理服务返回的分类结果
type ScanResult struct {
	Prediction string    `json:"prediction"`
	Confidence float64   `json:"confidence"` // 百分比 0-100
	AllScores  []float64 `json:"all_scores"` // 概率，按 Labels 顺序
	Index      *int      `json:"index,omitempty"`
}

// Clone 深拷贝，避免调用方修改共享的结果
func (r *ScanResult) Clone() *ScanResult {
	if r == nil {
		return nil
	}
	out := *r
	out.AllScores = append([]float64(nil), r.AllScores...)
	if r.Index != nil {
		idx := *r.Index
		out.Index = &idx
	}
	return &out
}

// ErrorBody 推理服务的错误响应
type ErrorBody struct {
	Detail string `json:"detail"`
}
