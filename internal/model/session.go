package model

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// maxMissedBeats 连续丢失心跳达到该次数后断开
	maxMissedBeats = 3
	// DefaultWriteWait 单次写入的超时，对端不读时写入不会一直阻塞
	DefaultWriteWait = 10 * time.Second
)

// ClientConn 页面会话上的 WebSocket 连接
type ClientConn struct {
	SessionID     string
	Conn          *websocket.Conn
	ClientIP      string
	ConnectedAt   time.Time
	LastHeartbeat time.Time
	MissedBeats   int
	WriteWait     time.Duration
	mu            sync.Mutex
}

// NewClientConn 包装一条新连接
func NewClientConn(sessionID string, conn *websocket.Conn, clientIP string) *ClientConn {
	now := time.Now()
	return &ClientConn{
		SessionID:     sessionID,
		Conn:          conn,
		ClientIP:      clientIP,
		ConnectedAt:   now,
		LastHeartbeat: now,
		WriteWait:     DefaultWriteWait,
	}
}

// UpdateHeartbeat 更新心跳时间
func (c *ClientConn) UpdateHeartbeat() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastHeartbeat = time.Now()
	c.MissedBeats = 0
}

// CheckHeartbeat 超过 timeout 未收到心跳则计一次丢失，返回是否应断开
func (c *ClientConn) CheckHeartbeat(now time.Time, timeout time.Duration) (missed int, expired bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Sub(c.LastHeartbeat) <= timeout {
		return c.MissedBeats, false
	}
	c.MissedBeats++
	return c.MissedBeats, c.MissedBeats >= maxMissedBeats
}

// WriteMessage 向 WebSocket 写入消息（线程安全）
func (c *ClientConn) WriteMessage(message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.WriteWait > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.WriteWait)); err != nil {
			return err
		}
	}
	return c.Conn.WriteJSON(message)
}

// Close 关闭连接
func (c *ClientConn) Close() error {
	return c.Conn.Close()
}
