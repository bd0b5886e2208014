package ws

// 房间与分组索引：建立在 Registry 同一把锁上。
// 房间在首次 JoinRoom 时隐式创建，最后一名成员离开后销毁。

// JoinRoom 将连接加入房间，房间不存在则创建。
// 已有成员（不含加入者）收到 user_joined_room 事件，通知为尽力而为，
// 不会阻塞加入本身。重复加入为 no-op。
func (r *Registry) JoinRoom(id, room string) error {
	r.mu.Lock()
	c, ok := r.conns[id]
	if !ok {
		r.mu.Unlock()
		return ErrConnectionNotFound
	}
	set := r.rooms[room]
	if set == nil {
		set = make(map[string]struct{})
		r.rooms[room] = set
	}
	if _, member := set[id]; member {
		r.mu.Unlock()
		return nil
	}
	if len(set) >= r.conf.MaxRoomSize {
		r.mu.Unlock()
		return ErrRoomFull
	}

	others := make([]string, 0, len(set))
	for m := range set {
		others = append(others, m)
	}
	set[id] = struct{}{}
	c.rooms[room] = struct{}{}
	r.mu.Unlock()

	frame := NewRoomEventFrame(FrameUserJoinedRoom, id, room)
	for _, m := range others {
		r.SendTo(m, frame)
	}
	return nil
}

// LeaveRoom 将连接移出房间。房间变空则销毁，否则剩余成员收到
// user_left_room 事件。未知房间或非成员为安全 no-op。
func (r *Registry) LeaveRoom(id, room string) {
	r.mu.Lock()
	set := r.rooms[room]
	if set == nil {
		r.mu.Unlock()
		return
	}
	if _, member := set[id]; !member {
		r.mu.Unlock()
		return
	}
	delete(set, id)
	if c, ok := r.conns[id]; ok {
		delete(c.rooms, room)
	}

	var remaining []string
	if len(set) == 0 {
		delete(r.rooms, room)
	} else {
		remaining = make([]string, 0, len(set))
		for m := range set {
			remaining = append(remaining, m)
		}
	}
	r.mu.Unlock()

	if len(remaining) > 0 {
		frame := NewRoomEventFrame(FrameUserLeftRoom, id, room)
		for _, m := range remaining {
			r.SendTo(m, frame)
		}
	}
}

// Members 房间成员快照；未知房间返回空切片
func (r *Registry) Members(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.rooms[room]
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members
}

// ListRooms 活跃房间名快照
func (r *Registry) ListRooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rooms := make([]string, 0, len(r.rooms))
	for room := range r.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// SendToUser 向用户所有连接发送消息，返回成功数。
// 未知用户返回 0；投递失败的连接经 SendTo 的自愈路径被剔除。
func (r *Registry) SendToUser(userID string, v any) int {
	r.mu.RLock()
	set := r.byUser[userID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sent := 0
	for _, id := range ids {
		if r.SendTo(id, v) {
			sent++
		}
	}
	return sent
}

// SendToDevice 向设备所有连接发送消息，语义同 SendToUser
func (r *Registry) SendToDevice(deviceID string, v any) int {
	r.mu.RLock()
	set := r.byDevice[deviceID]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sent := 0
	for _, id := range ids {
		if r.SendTo(id, v) {
			sent++
		}
	}
	return sent
}
