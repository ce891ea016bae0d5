package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/neuroscan/neuroscan-go/internal/model"
	"go.uber.org/zap"
)

var (
	// ErrChatBusy 上一条消息尚未得到回复
	ErrChatBusy = errors.New("上一条消息仍在等待回复")
)

// ChatState 聊天状态
type ChatState string

const (
	ChatIdle             ChatState = "idle"
	ChatAwaitingResponse ChatState = "awaiting_response"
	ChatError            ChatState = "error"
)

// ChatBackend 聊天后端
type ChatBackend interface {
	Chat(ctx context.Context, req model.ChatRequest) (*model.ChatReply, error)
}

// EventSink 接收聊天状态变化，按发生顺序推送
type EventSink interface {
	Publish(evt model.Event)
}

// ResultSource 提供当前分类结果快照
type ResultSource interface {
	Current() *model.ScanResult
}

// ContextPolicy 决定一条问题是否需要附带分类结果
type ContextPolicy interface {
	IncludeContext(question string) bool
}

// KeywordPolicy 问题包含任一关键词（不区分大小写）时附带结果
type KeywordPolicy struct {
	Keywords []string
}

// IncludeContext 实现 ContextPolicy
func (p KeywordPolicy) IncludeContext(question string) bool {
	q := strings.ToLower(question)
	for _, k := range p.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(q, k) {
			return true
		}
	}
	return false
}

// ChatOptions 聊天会话的固定文案与策略
type ChatOptions struct {
	AskPrompt          string
	ApologyMessage     string
	StarterSuggestions []string
	Policy             ContextPolicy
}

// ChatSnapshot 聊天会话的只读快照
type ChatSnapshot struct {
	State       ChatState           `json:"state"`
	Typing      bool                `json:"typing"`
	SessionID   *string             `json:"sessionId"`
	Messages    []model.ChatMessage `json:"messages"`
	Suggestions []string            `json:"suggestions"`
}

// ChatSession 单个页面会话的聊天协调器
type ChatSession struct {
	backend ChatBackend
	results ResultSource
	opts    ChatOptions
	logger  *zap.Logger

	mu          sync.Mutex
	sink        EventSink
	state       ChatState
	typing      bool
	sessionID   *string
	messages    []model.ChatMessage
	suggestions []string
	generation  uint64
}

// NewChatSession 创建聊天会话
func NewChatSession(backend ChatBackend, results ResultSource, opts ChatOptions, logger *zap.Logger) *ChatSession {
	if opts.Policy == nil {
		opts.Policy = KeywordPolicy{}
	}
	return &ChatSession{
		backend:     backend,
		results:     results,
		opts:        opts,
		logger:      logger,
		state:       ChatIdle,
		suggestions: append([]string(nil), opts.StarterSuggestions...),
	}
}

// SetSink 替换事件接收方，nil 表示不推送
func (s *ChatSession) SetSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// IncludeContextFor 按策略判断自由输入是否附带结果
func (s *ChatSession) IncludeContextFor(text string) bool {
	return s.opts.Policy.IncludeContext(text)
}

// Send 发送一条消息。空白消息直接忽略；只有 ErrChatBusy 会返回给调用方，
// 后端失败以致歉消息的形式出现在对话里
func (s *ChatSession) Send(ctx context.Context, text string, includeContext bool) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if s.state == ChatAwaitingResponse {
		s.mu.Unlock()
		return ErrChatBusy
	}
	s.setStateLocked(ChatAwaitingResponse)
	s.generation++
	gen := s.generation

	req := model.ChatRequest{Message: text}
	if s.sessionID != nil {
		sid := *s.sessionID
		req.SessionID = &sid
	}
	if includeContext && s.results != nil {
		req.Context = s.results.Current()
	}

	s.appendLocked(model.RoleUser, text)
	s.setTypingLocked(true)
	s.mu.Unlock()

	reply, err := s.backend.Chat(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		s.logger.Info("丢弃过期的聊天回复", zap.Uint64("generation", gen), zap.Uint64("current", s.generation))
		return nil
	}

	s.setTypingLocked(false)
	if err != nil {
		s.logger.Error("聊天请求失败", zap.Error(err), zap.Bool("withContext", req.Context != nil))
		s.setStateLocked(ChatError)
		s.appendLocked(model.RoleBot, s.opts.ApologyMessage)
		s.setStateLocked(ChatIdle)
		return nil
	}

	sid := reply.SessionID
	s.sessionID = &sid
	s.appendLocked(model.RoleBot, reply.Response)
	s.suggestions = append([]string(nil), reply.SuggestedQuestions...)
	s.publishLocked(model.Event{Type: model.EventSuggestions, Suggestions: s.suggestions})
	s.setStateLocked(ChatIdle)
	return nil
}

// AskAboutResult 打开聊天并以固定问题询问当前结果，尚无结果时什么都不做
func (s *ChatSession) AskAboutResult(ctx context.Context) error {
	if s.results == nil || s.results.Current() == nil {
		return nil
	}
	s.mu.Lock()
	s.publishLocked(model.Event{Type: model.EventOpenChat})
	s.mu.Unlock()
	return s.Send(ctx, s.opts.AskPrompt, true)
}

// ClickSuggestion 发送建议问题，是否附带结果由 ContextPolicy 决定
func (s *ChatSession) ClickSuggestion(ctx context.Context, question string) error {
	return s.Send(ctx, question, s.opts.Policy.IncludeContext(question))
}

// Reset 开始新对话：清空记录和服务端会话 id，进行中的回复到达后会被丢弃
func (s *ChatSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.state = ChatIdle
	s.typing = false
	s.sessionID = nil
	s.messages = nil
	s.suggestions = append([]string(nil), s.opts.StarterSuggestions...)
	s.publishLocked(model.Event{Type: model.EventReset, Suggestions: s.suggestions})
}

// Snapshot 当前状态
func (s *ChatSession) Snapshot() ChatSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := ChatSnapshot{
		State:       s.state,
		Typing:      s.typing,
		Messages:    append([]model.ChatMessage(nil), s.messages...),
		Suggestions: append([]string(nil), s.suggestions...),
	}
	if s.sessionID != nil {
		sid := *s.sessionID
		snap.SessionID = &sid
	}
	return snap
}

func (s *ChatSession) appendLocked(role model.Role, content string) {
	msg := model.ChatMessage{Role: role, Content: content, Timestamp: time.Now()}
	s.messages = append(s.messages, msg)
	s.publishLocked(model.Event{Type: model.EventMessage, Message: &msg})
}

// setStateLocked 每次状态变化都推送 STATE 事件
func (s *ChatSession) setStateLocked(st ChatState) {
	s.state = st
	s.publishLocked(model.Event{Type: model.EventState, State: string(st)})
}

func (s *ChatSession) setTypingLocked(on bool) {
	s.typing = on
	s.publishLocked(model.Event{Type: model.EventTyping, Typing: &on})
}

// publishLocked 在持有 mu 时调用，保证事件顺序与状态变化一致
func (s *ChatSession) publishLocked(evt model.Event) {
	if s.sink == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	s.sink.Publish(evt)
}
