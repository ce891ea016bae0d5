package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/neuroscan/neuroscan-go/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChatBackend struct {
	mu      sync.Mutex
	reqs    []model.ChatRequest
	replies []*model.ChatReply
	err     error
	// gate 非空时，Chat 会在返回前等待
	gate    chan struct{}
	entered chan struct{}
}

func (f *fakeChatBackend) Chat(ctx context.Context, req model.ChatRequest) (*model.ChatReply, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	var reply *model.ChatReply
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	gate, entered, err := f.gate, f.entered, f.err
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	if reply == nil {
		reply = &model.ChatReply{Response: "ok", SessionID: "s"}
	}
	return reply, nil
}

func (f *fakeChatBackend) requests() []model.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.ChatRequest(nil), f.reqs...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *recordingSink) Publish(evt model.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recordingSink) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recordingSink) states() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Type == model.EventState {
			out = append(out, e.State)
		}
	}
	return out
}

var testChatOptions = ChatOptions{
	AskPrompt:          "Can you explain my scan results in simple terms?",
	ApologyMessage:     "Sorry, I'm having trouble connecting right now.",
	StarterSuggestions: []string{"How accurate is this AI model?"},
	Policy:             KeywordPolicy{Keywords: []string{"result"}},
}

func newTestChat(backend ChatBackend, results ResultSource) (*ChatSession, *recordingSink) {
	cs := NewChatSession(backend, results, testChatOptions, zap.NewNop())
	sink := &recordingSink{}
	cs.SetSink(sink)
	return cs, sink
}

func meningioma() model.ScanResult {
	return model.ScanResult{Prediction: "Meningioma", Confidence: 92.3, AllScores: []float64{0.05, 0.923, 0.02, 0.007}}
}

func TestSendSuccess(t *testing.T) {
	backend := &fakeChatBackend{replies: []*model.ChatReply{{
		Response:           "A meningioma is usually benign.",
		SessionID:          "abc",
		SuggestedQuestions: []string{"What should I do next?"},
	}}}
	cs, sink := newTestChat(backend, &ResultContext{})

	require.NoError(t, cs.Send(context.Background(), "  What is a meningioma?  ", false))

	reqs := backend.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "What is a meningioma?", reqs[0].Message)
	assert.Nil(t, reqs[0].SessionID)
	assert.Nil(t, reqs[0].Context)

	snap := cs.Snapshot()
	assert.Equal(t, ChatIdle, snap.State)
	assert.False(t, snap.Typing)
	require.NotNil(t, snap.SessionID)
	assert.Equal(t, "abc", *snap.SessionID)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, model.RoleUser, snap.Messages[0].Role)
	assert.Equal(t, model.RoleBot, snap.Messages[1].Role)
	assert.Equal(t, "A meningioma is usually benign.", snap.Messages[1].Content)
	assert.Equal(t, []string{"What should I do next?"}, snap.Suggestions)

	assert.Equal(t, []model.EventType{
		model.EventState, model.EventMessage, model.EventTyping,
		model.EventTyping, model.EventMessage, model.EventSuggestions, model.EventState,
	}, sink.types())
	assert.Equal(t, []string{"awaiting_response", "idle"}, sink.states())
}

func TestSendReusesServerSessionID(t *testing.T) {
	backend := &fakeChatBackend{replies: []*model.ChatReply{
		{Response: "one", SessionID: "first"},
		{Response: "two", SessionID: "second"},
	}}
	cs, _ := newTestChat(backend, &ResultContext{})

	require.NoError(t, cs.Send(context.Background(), "hi", false))
	require.NoError(t, cs.Send(context.Background(), "again", false))

	reqs := backend.requests()
	require.Len(t, reqs, 2)
	require.NotNil(t, reqs[1].SessionID)
	assert.Equal(t, "first", *reqs[1].SessionID)
	assert.Equal(t, "second", *cs.Snapshot().SessionID)
}

func TestSendEmptyIsNoop(t *testing.T) {
	backend := &fakeChatBackend{}
	cs, sink := newTestChat(backend, &ResultContext{})

	require.NoError(t, cs.Send(context.Background(), "   ", true))

	assert.Empty(t, backend.requests())
	assert.Empty(t, sink.types())
	assert.Empty(t, cs.Snapshot().Messages)
}

func TestSendFailureAppendsApology(t *testing.T) {
	backend := &fakeChatBackend{err: errors.New("connection refused")}
	cs, _ := newTestChat(backend, &ResultContext{})

	require.NoError(t, cs.Send(context.Background(), "hello", false))

	snap := cs.Snapshot()
	assert.Equal(t, ChatIdle, snap.State)
	assert.False(t, snap.Typing)
	assert.Nil(t, snap.SessionID)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, testChatOptions.ApologyMessage, snap.Messages[1].Content)
	assert.Equal(t, []string{"How accurate is this AI model?"}, snap.Suggestions)
	assert.Len(t, backend.requests(), 1)
}

func TestSendFailurePassesThroughErrorState(t *testing.T) {
	backend := &fakeChatBackend{err: errors.New("timeout")}
	cs, sink := newTestChat(backend, &ResultContext{})

	require.NoError(t, cs.Send(context.Background(), "hello", false))

	assert.Equal(t, []string{"awaiting_response", "error", "idle"}, sink.states())
	assert.Equal(t, []model.EventType{
		model.EventState, model.EventMessage, model.EventTyping,
		model.EventTyping, model.EventState, model.EventMessage, model.EventState,
	}, sink.types())
}

func TestSendIncludesContextSnapshot(t *testing.T) {
	backend := &fakeChatBackend{}
	results := &ResultContext{}
	results.Set(meningioma())
	cs, _ := newTestChat(backend, results)

	require.NoError(t, cs.Send(context.Background(), "tell me more", true))

	reqs := backend.requests()
	require.Len(t, reqs, 1)
	require.NotNil(t, reqs[0].Context)
	assert.Equal(t, "Meningioma", reqs[0].Context.Prediction)
	assert.Equal(t, 92.3, reqs[0].Context.Confidence)
}

func TestSendWhileAwaitingIsRejected(t *testing.T) {
	backend := &fakeChatBackend{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	cs, _ := newTestChat(backend, &ResultContext{})

	done := make(chan error, 1)
	go func() { done <- cs.Send(context.Background(), "first", false) }()
	<-backend.entered

	assert.Equal(t, ChatAwaitingResponse, cs.Snapshot().State)
	assert.True(t, cs.Snapshot().Typing)
	assert.ErrorIs(t, cs.Send(context.Background(), "second", false), ErrChatBusy)

	close(backend.gate)
	require.NoError(t, <-done)

	assert.Len(t, backend.requests(), 1)
	assert.Len(t, cs.Snapshot().Messages, 2)
}

func TestResetDiscardsStaleReply(t *testing.T) {
	backend := &fakeChatBackend{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
		replies: []*model.ChatReply{{Response: "late", SessionID: "old"}},
	}
	cs, sink := newTestChat(backend, &ResultContext{})

	done := make(chan error, 1)
	go func() { done <- cs.Send(context.Background(), "first", false) }()
	<-backend.entered

	cs.Reset()
	close(backend.gate)
	require.NoError(t, <-done)

	snap := cs.Snapshot()
	assert.Equal(t, ChatIdle, snap.State)
	assert.Empty(t, snap.Messages)
	assert.Nil(t, snap.SessionID)
	assert.Equal(t, []string{"How accurate is this AI model?"}, snap.Suggestions)
	assert.Equal(t, model.EventReset, sink.types()[len(sink.types())-1])
}

func TestAskAboutResultWithoutResultIsNoop(t *testing.T) {
	backend := &fakeChatBackend{}
	cs, sink := newTestChat(backend, &ResultContext{})

	require.NoError(t, cs.AskAboutResult(context.Background()))

	assert.Empty(t, backend.requests())
	assert.Empty(t, sink.types())
}

func TestAskAboutResultSendsCanonicalPrompt(t *testing.T) {
	backend := &fakeChatBackend{}
	results := &ResultContext{}
	results.Set(meningioma())
	cs, sink := newTestChat(backend, results)

	require.NoError(t, cs.AskAboutResult(context.Background()))

	reqs := backend.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, testChatOptions.AskPrompt, reqs[0].Message)
	require.NotNil(t, reqs[0].Context)
	assert.Equal(t, "Meningioma", reqs[0].Context.Prediction)
	assert.Equal(t, model.EventOpenChat, sink.types()[0])
}

func TestClickSuggestionUsesPolicy(t *testing.T) {
	backend := &fakeChatBackend{}
	results := &ResultContext{}
	results.Set(meningioma())
	cs, _ := newTestChat(backend, results)

	require.NoError(t, cs.ClickSuggestion(context.Background(), "Explain my Results in simple terms"))
	require.NoError(t, cs.ClickSuggestion(context.Background(), "What should I do next?"))

	reqs := backend.requests()
	require.Len(t, reqs, 2)
	assert.NotNil(t, reqs[0].Context)
	assert.Nil(t, reqs[1].Context)
}

func TestKeywordPolicy(t *testing.T) {
	p := KeywordPolicy{Keywords: []string{"result", " "}}
	assert.True(t, p.IncludeContext("my RESULTS please"))
	assert.False(t, p.IncludeContext("hello"))
	assert.False(t, KeywordPolicy{}.IncludeContext("result"))
}
