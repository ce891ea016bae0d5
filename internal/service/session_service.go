package service

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/neuroscan/neuroscan-go/internal/model"
	"go.uber.org/zap"
)

var (
	ErrSessionOffline = errors.New("会话没有在线连接")
)

// DashboardFactory 为新的会话 id 创建 Dashboard
type DashboardFactory func(id string) *Dashboard

// SessionService 会话管理服务
type SessionService struct {
	dashboards map[string]*Dashboard        // sessionId -> dashboard
	conns      map[string]*model.ClientConn // sessionId -> websocket
	factory    DashboardFactory
	idleTTL    time.Duration
	reapEvery  time.Duration
	mu         sync.RWMutex
	logger     *zap.Logger
	stop       chan struct{}
	stopOnce   sync.Once
}

// NewSessionService 创建会话管理服务并启动空闲清理
func NewSessionService(factory DashboardFactory, idleTTL, reapEvery time.Duration, logger *zap.Logger) *SessionService {
	s := &SessionService{
		dashboards: make(map[string]*Dashboard),
		conns:      make(map[string]*model.ClientConn),
		factory:    factory,
		idleTTL:    idleTTL,
		reapEvery:  reapEvery,
		logger:     logger,
		stop:       make(chan struct{}),
	}

	if reapEvery > 0 {
		go s.reaper()
	}

	return s
}

// GetOrCreate 取会话，不存在时创建
func (s *SessionService) GetOrCreate(id string) *Dashboard {
	s.mu.RLock()
	d, ok := s.dashboards[id]
	s.mu.RUnlock()
	if ok {
		d.Touch()
		return d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.dashboards[id]; ok {
		d.Touch()
		return d
	}
	d = s.factory(id)
	s.dashboards[id] = d
	s.logger.Info("创建页面会话", zap.String("sessionId", id))
	return d
}

// Get 取已有会话
func (s *SessionService) Get(id string) (*Dashboard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.dashboards[id]
	return d, ok
}

// Attach 绑定 WebSocket 连接，同一会话的旧连接会被关闭
func (s *SessionService) Attach(id string, conn *websocket.Conn, clientIP string) *model.ClientConn {
	d := s.GetOrCreate(id)
	cc := model.NewClientConn(id, conn, clientIP)

	s.mu.Lock()
	if existing, ok := s.conns[id]; ok {
		s.logger.Info("会话重新连接，关闭旧连接",
			zap.String("sessionId", id),
			zap.String("oldClientIP", existing.ClientIP))
		existing.Close()
	}
	s.conns[id] = cc
	s.mu.Unlock()

	d.SetSink(&connSink{svc: s, id: id})

	s.logger.Info("WebSocket 连接绑定成功",
		zap.String("sessionId", id),
		zap.String("clientIP", clientIP))
	return cc
}

// Detach 解绑连接，只有仍是当前连接时才生效
func (s *SessionService) Detach(id string, cc *model.ClientConn) {
	s.mu.Lock()
	current, ok := s.conns[id]
	if !ok || (cc != nil && current != cc) {
		s.mu.Unlock()
		return
	}
	delete(s.conns, id)
	d := s.dashboards[id]
	s.mu.Unlock()

	if d != nil {
		d.SetSink(nil)
	}
	s.logger.Info("WebSocket 连接已解绑", zap.String("sessionId", id))
}

// SendEvent 向会话的连接推送事件
func (s *SessionService) SendEvent(id string, evt model.Event) error {
	s.mu.RLock()
	cc, ok := s.conns[id]
	s.mu.RUnlock()

	if !ok {
		s.logger.Debug("会话不在线，事件未推送", zap.String("sessionId", id), zap.String("type", string(evt.Type)))
		return ErrSessionOffline
	}

	if err := cc.WriteMessage(evt); err != nil {
		s.logger.Error("事件推送失败",
			zap.String("sessionId", id),
			zap.String("type", string(evt.Type)),
			zap.Error(err))
		// 异步清理无效连接
		go s.Detach(id, cc)
		return err
	}
	return nil
}

// UpdateHeartbeat 更新心跳时间
func (s *SessionService) UpdateHeartbeat(id string) bool {
	s.mu.RLock()
	cc, ok := s.conns[id]
	d := s.dashboards[id]
	s.mu.RUnlock()

	if !ok {
		return false
	}
	cc.UpdateHeartbeat()
	if d != nil {
		d.Touch()
	}
	s.logger.Debug("心跳已更新", zap.String("sessionId", id))
	return true
}

// Remove 移除会话并释放资源
func (s *SessionService) Remove(id string) {
	s.mu.Lock()
	d, ok := s.dashboards[id]
	cc := s.conns[id]
	delete(s.dashboards, id)
	delete(s.conns, id)
	s.mu.Unlock()

	if cc != nil {
		cc.Close()
	}
	if ok {
		d.Close()
		s.logger.Info("页面会话已移除", zap.String("sessionId", id))
	}
}

// Count 会话数
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dashboards)
}

// OnlineCount 在线连接数
func (s *SessionService) OnlineCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Stop 停止清理并关闭所有会话
func (s *SessionService) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.RLock()
	ids := make([]string, 0, len(s.dashboards))
	for id := range s.dashboards {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	for _, id := range ids {
		s.Remove(id)
	}
}

// reaper 心跳检测与空闲会话清理
func (s *SessionService) reaper() {
	ticker := time.NewTicker(s.reapEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.reap(now)
		}
	}
}

func (s *SessionService) reap(now time.Time) {
	heartbeatTimeout := 2 * s.reapEvery

	s.mu.RLock()
	conns := make(map[string]*model.ClientConn, len(s.conns))
	for id, cc := range s.conns {
		conns[id] = cc
	}
	idle := make([]string, 0)
	for id, d := range s.dashboards {
		if _, online := s.conns[id]; online {
			continue
		}
		if s.idleTTL > 0 && now.Sub(d.LastSeen()) > s.idleTTL {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	for id, cc := range conns {
		missed, expired := cc.CheckHeartbeat(now, heartbeatTimeout)
		if expired {
			s.logger.Info("清理无效连接", zap.String("sessionId", id), zap.Int("missedBeats", missed))
			cc.Close()
			s.Detach(id, cc)
		} else if missed > 0 {
			s.logger.Warn("连接心跳丢失", zap.String("sessionId", id), zap.Int("missedBeats", missed))
		}
	}

	for _, id := range idle {
		if s.removeIfIdle(id, now) {
			s.logger.Info("清理空闲会话", zap.String("sessionId", id))
		}
	}
}

// removeIfIdle 在写锁内重新确认会话仍然空闲且没有连接后才移除
func (s *SessionService) removeIfIdle(id string, now time.Time) bool {
	s.mu.Lock()
	d, ok := s.dashboards[id]
	_, online := s.conns[id]
	if !ok || online || now.Sub(d.LastSeen()) <= s.idleTTL {
		s.mu.Unlock()
		return false
	}
	delete(s.dashboards, id)
	s.mu.Unlock()

	d.Close()
	return true
}

// connSink 把会话事件写到当前连接
type connSink struct {
	svc *SessionService
	id  string
}

func (c *connSink) Publish(evt model.Event) {
	_ = c.svc.SendEvent(c.id, evt)
}
