package ws

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Socket 连接底层传输抽象；*websocket.Conn 满足该接口。
// 注册后 socket 由 Connection 独占，其他组件不得直接写入。
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Metadata 握手时由认证层提供的关联信息
type Metadata struct {
	UserID   string // 已认证用户 ID，可为空
	DeviceID string // 设备 ID，可为空
}

// Connection 单条客户端会话。字段 rooms 及各索引由 Registry 持锁维护，
// socket 写入由 writeMu 串行化（单写者保证每连接消息有序）。
type Connection struct {
	ID       string
	UserID   string
	DeviceID string

	sock    Socket
	writeMu sync.Mutex

	rooms map[string]struct{} // 当前房间集合，仅在 Registry 锁内访问

	connectedAt  time.Time
	lastActivity atomic.Int64 // unix nano
	closed       atomic.Bool

	// 心跳任务生命周期，Disconnect 时同步取消
	ctx    context.Context
	cancel context.CancelFunc

	writeWait time.Duration
}

// newConnection 创建连接记录
func newConnection(parent context.Context, id string, sock Socket, meta Metadata, writeWait time.Duration) *Connection {
	ctx, cancel := context.WithCancel(parent)
	c := &Connection{
		ID:          id,
		UserID:      meta.UserID,
		DeviceID:    meta.DeviceID,
		sock:        sock,
		rooms:       make(map[string]struct{}),
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
		writeWait:   writeWait,
	}
	c.lastActivity.Store(time.Now().UnixNano())
	return c
}

// writeRaw 带超时写入一条文本帧
func (c *Connection) writeRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}
	if err := c.sock.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.sock.WriteMessage(websocket.TextMessage, data)
}

// write 序列化并写入
func (c *Connection) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.writeRaw(data)
}

// touch 刷新最近活跃时间；任何成功的入站流量都会调用
func (c *Connection) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity 最近活跃时间
func (c *Connection) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// ConnectedAt 建立时间
func (c *Connection) ConnectedAt() time.Time {
	return c.connectedAt
}

// markClosed 标记关闭并取消心跳任务；幂等
func (c *Connection) markClosed() {
	c.closed.Store(true)
	c.cancel()
}

// closeQuiet 尽力关闭 socket，忽略错误
func (c *Connection) closeQuiet() {
	_ = c.sock.Close()
}
