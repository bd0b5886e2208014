package ws

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry 连接注册中心：连接主表与 user/device/room 索引的唯一属主。
// 所有表由同一把 mu 保护，任何修改在一次临界区内完成，保证主表删除
// 与各二级索引删除的原子性；锁内绝不触碰 socket 写入。
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*Connection         // 主表：connID -> Connection
	byUser   map[string]map[string]struct{} // userID -> connID 集合
	byDevice map[string]map[string]struct{} // deviceID -> connID 集合
	rooms    map[string]map[string]struct{} // room -> connID 集合

	conf *Config
	log  *zap.Logger

	// 心跳任务根上下文，Shutdown 时统一取消
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closed atomic.Bool

	// 统计
	totalConnections atomic.Int64
	totalMessages    atomic.Int64
}

// NewRegistry 创建注册中心
func NewRegistry(opts ...Option) (*Registry, error) {
	conf := DefaultConfig()
	for _, opt := range opts {
		opt(conf)
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if conf.Logger == nil {
		conf.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		conns:    make(map[string]*Connection),
		byUser:   make(map[string]map[string]struct{}),
		byDevice: make(map[string]map[string]struct{}),
		rooms:    make(map[string]map[string]struct{}),
		conf:     conf,
		log:      conf.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Connect 登记一条新连接：生成连接 ID，写入主表及 user/device 索引，
// 启动心跳任务并下发 connection_established 确认帧。
// 超过连接上限时拒绝并返回 ErrTooManyConnections（调用方负责关闭 socket）。
func (r *Registry) Connect(sock Socket, meta Metadata) (string, error) {
	if r.closed.Load() {
		return "", ErrRegistryClosed
	}

	id := uuid.NewString()
	c := newConnection(r.ctx, id, sock, meta, r.conf.WriteWait)

	r.mu.Lock()
	if len(r.conns) >= r.conf.MaxConnections {
		r.mu.Unlock()
		return "", ErrTooManyConnections
	}
	r.conns[id] = c
	if meta.UserID != "" {
		if r.byUser[meta.UserID] == nil {
			r.byUser[meta.UserID] = make(map[string]struct{})
		}
		r.byUser[meta.UserID][id] = struct{}{}
	}
	if meta.DeviceID != "" {
		if r.byDevice[meta.DeviceID] == nil {
			r.byDevice[meta.DeviceID] = make(map[string]struct{})
		}
		r.byDevice[meta.DeviceID][id] = struct{}{}
	}
	r.mu.Unlock()

	r.totalConnections.Add(1)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.heartbeatLoop(c)
	}()

	// 确认帧失败走 SendTo 的自愈路径
	r.SendTo(id, NewConnectionEstablishedFrame(id))

	r.log.Info("connection established",
		zap.String("connection_id", id),
		zap.String("user_id", meta.UserID),
		zap.String("device_id", meta.DeviceID))
	return id, nil
}

// Disconnect 注销连接：从主表、所有房间及 user/device 索引中移除，
// 同步取消心跳任务并尽力关闭 socket。幂等，未知 ID 为安全 no-op。
// 返回后对该 ID 的 SendTo 一律失败。
func (r *Registry) Disconnect(id string) {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, id)

	if c.UserID != "" {
		if set := r.byUser[c.UserID]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(r.byUser, c.UserID)
			}
		}
	}
	if c.DeviceID != "" {
		if set := r.byDevice[c.DeviceID]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(r.byDevice, c.DeviceID)
			}
		}
	}

	// 离开所有房间；空房间销毁，其余成员收到 user_left_room
	type roomNotice struct {
		room    string
		members []string
	}
	var notices []roomNotice
	for room := range c.rooms {
		set := r.rooms[room]
		if set == nil {
			continue
		}
		delete(set, id)
		if len(set) == 0 {
			delete(r.rooms, room)
			continue
		}
		members := make([]string, 0, len(set))
		for m := range set {
			members = append(members, m)
		}
		notices = append(notices, roomNotice{room: room, members: members})
	}
	r.mu.Unlock()

	c.markClosed()
	c.closeQuiet()

	for _, n := range notices {
		frame := NewRoomEventFrame(FrameUserLeftRoom, id, n.room)
		for _, m := range n.members {
			r.SendTo(m, frame)
		}
	}

	r.log.Info("connection closed", zap.String("connection_id", id))
}

// SendTo 向指定连接发送一条消息。未知 ID 或写失败返回 false，
// 写失败同时触发异步 Disconnect 使故障自愈。
func (r *Registry) SendTo(id string, v any) bool {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if err := c.write(v); err != nil {
		r.log.Warn("write failed, scheduling disconnect",
			zap.String("connection_id", id), zap.Error(err))
		go r.Disconnect(id)
		return false
	}
	r.totalMessages.Add(1)
	return true
}

// sendRaw 发送已序列化数据，广播扇出复用，语义同 SendTo
func (r *Registry) sendRaw(id string, data []byte) bool {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	if err := c.writeRaw(data); err != nil {
		r.log.Warn("write failed, scheduling disconnect",
			zap.String("connection_id", id), zap.Error(err))
		go r.Disconnect(id)
		return false
	}
	r.totalMessages.Add(1)
	return true
}

// Exists 连接是否在册
func (r *Registry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// Touch 刷新连接活跃时间；读循环在每条成功入站消息后调用
func (r *Registry) Touch(id string) {
	r.mu.RLock()
	c, ok := r.conns[id]
	r.mu.RUnlock()
	if ok {
		c.touch()
	}
}

// ConnectionInfo 连接快照信息
type ConnectionInfo struct {
	ConnectionID string    `json:"connection_id"`
	UserID       string    `json:"user_id,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	Rooms        []string  `json:"rooms"`
	ConnectedAt  time.Time `json:"connected_at"`
	LastActivity time.Time `json:"last_activity_at"`
}

// Info 返回连接信息快照；未知 ID 返回 ErrConnectionNotFound
func (r *Registry) Info(id string) (*ConnectionInfo, error) {
	r.mu.RLock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.RUnlock()
		return nil, ErrConnectionNotFound
	}
	rooms := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rooms = append(rooms, room)
	}
	r.mu.RUnlock()

	return &ConnectionInfo{
		ConnectionID: c.ID,
		UserID:       c.UserID,
		DeviceID:     c.DeviceID,
		Rooms:        rooms,
		ConnectedAt:  c.ConnectedAt(),
		LastActivity: c.LastActivity(),
	}, nil
}

// Shutdown 关闭注册中心：拒绝新连接，断开全部连接，
// 在 ctx 预算内等待所有心跳任务退出。
func (r *Registry) Shutdown(ctx context.Context) error {
	r.closed.Store(true)
	r.cancel()

	r.mu.RLock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	for _, id := range ids {
		r.Disconnect(id)
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
