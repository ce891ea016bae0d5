package model

import "time"

// EventType 推送给页面的事件类型
type EventType string

const (
	EventMessage     EventType = "MESSAGE"
	EventTyping      EventType = "TYPING"
	EventSuggestions EventType = "SUGGESTIONS"
	EventOpenChat    EventType = "OPEN_CHAT"
	EventResult      EventType = "RESULT"
	EventError       EventType = "ERROR"
	EventAck         EventType = "ACK"
	EventReset       EventType = "RESET"
	EventState       EventType = "STATE"
)

// Event 推送事件
type Event struct {
	Type        EventType    `json:"type"`
	Message     *ChatMessage `json:"message,omitempty"`
	Typing      *bool        `json:"typing,omitempty"`
	State       string       `json:"state,omitempty"`
	Suggestions []string     `json:"suggestions,omitempty"`
	Payload     interface{}  `json:"payload,omitempty"`
	Error       string       `json:"error,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// Command 页面通过 websocket 发来的指令
type Command struct {
	Type           string `json:"type"` // CHAT, SUGGESTION, ASK_RESULT, RESET, HEARTBEAT
	Content        string `json:"content"`
	IncludeContext *bool  `json:"includeContext,omitempty"`
}
