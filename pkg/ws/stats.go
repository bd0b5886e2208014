package ws

// Stats 注册中心统计快照。各数值直接派生自权威索引，
// 不单独维护，避免与实际状态漂移。
type Stats struct {
	TotalConnections  int64 `json:"total_connections"`
	ActiveConnections int   `json:"active_connections"`
	ActiveRooms       int   `json:"active_rooms"`
	ConnectedUsers    int   `json:"connected_users"`
	ConnectedDevices  int   `json:"connected_devices"`
	TotalMessagesSent int64 `json:"total_messages"`
}

// ActiveConnections 当前在册连接数
func (r *Registry) ActiveConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// ActiveRooms 当前活跃房间数
func (r *Registry) ActiveRooms() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// ConnectedUsers 当前有连接在线的用户数
func (r *Registry) ConnectedUsers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// ConnectedDevices 当前有连接在线的设备数
func (r *Registry) ConnectedDevices() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byDevice)
}

// TotalMessagesSent 累计成功投递条数，单调递增
func (r *Registry) TotalMessagesSent() int64 {
	return r.totalMessages.Load()
}

// TotalConnections 累计建立过的连接数
func (r *Registry) TotalConnections() int64 {
	return r.totalConnections.Load()
}

// Stats 一次性取全部统计
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	s := Stats{
		ActiveConnections: len(r.conns),
		ActiveRooms:       len(r.rooms),
		ConnectedUsers:    len(r.byUser),
		ConnectedDevices:  len(r.byDevice),
	}
	r.mu.RUnlock()
	s.TotalConnections = r.totalConnections.Load()
	s.TotalMessagesSent = r.totalMessages.Load()
	return s
}
