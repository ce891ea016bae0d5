package model

import "time"

// Role 消息角色
type Role string

const (
	RoleUser Role = "user"
	RoleBot  Role = "bot"
)

// ChatMessage 聊天消息
type ChatMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest 发往推理服务 /chat 的请求
// SessionID 为 nil 时序列化为 null
type ChatRequest struct {
	Message   string      `json:"message"`
	SessionID *string     `json:"session_id"`
	Context   *ScanResult `json:"context,omitempty"`
}

// ChatReply /chat 的响应
type ChatReply struct {
	Response           string   `json:"response"`
	SessionID          string   `json:"session_id"`
	SuggestedQuestions []string `json:"suggested_questions"`
}
