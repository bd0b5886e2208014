package ws

import (
	"encoding/json"
	"time"
)

// 帧类型
const (
	// FrameSuccess 成功响应帧
	FrameSuccess = "success"
	// FrameError 错误响应帧
	FrameError = "error"
	// FrameConnectionEstablished 连接建立确认帧
	FrameConnectionEstablished = "connection_established"
	// FrameHeartbeat 心跳探测帧
	FrameHeartbeat = "heartbeat"
	// FrameUserJoinedRoom 成员加入房间事件帧
	FrameUserJoinedRoom = "user_joined_room"
	// FrameUserLeftRoom 成员离开房间事件帧
	FrameUserLeftRoom = "user_left_room"
)

// ServerVersion 握手确认帧携带的服务端版本号
const ServerVersion = "1.0.0"

// serverFeatures 握手确认帧携带的能力列表
var serverFeatures = []string{"heartbeat", "rooms", "broadcast"}

// Frame 入站帧：{"type": string, "data": object}
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OutFrame 出站帧：data 在序列化前保持任意结构
type OutFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ServerInfo 服务端元信息
type ServerInfo struct {
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

// errorData 错误帧数据体
type errorData struct {
	Code      int    `json:"code,omitempty"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// establishedData 握手确认帧数据体
type establishedData struct {
	ConnectionID string     `json:"connection_id"`
	Timestamp    string     `json:"timestamp"`
	ServerInfo   ServerInfo `json:"server_info"`
}

// roomEventData 房间成员变更事件数据体
type roomEventData struct {
	ConnectionID string `json:"connection_id"`
	RoomName     string `json:"room_name"`
	Timestamp    string `json:"timestamp"`
}

// nowISO 返回 ISO-8601 时间戳
func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NewSuccessFrame 构造成功帧；extra 中的键并入 data
func NewSuccessFrame(message string, extra map[string]any) *OutFrame {
	data := map[string]any{
		"message":   message,
		"timestamp": nowISO(),
	}
	for k, v := range extra {
		data[k] = v
	}
	return &OutFrame{Type: FrameSuccess, Data: data}
}

// NewErrorFrame 构造错误帧；code 为 0 时省略
func NewErrorFrame(code int, message string) *OutFrame {
	return &OutFrame{Type: FrameError, Data: errorData{
		Code:      code,
		Message:   message,
		Timestamp: nowISO(),
	}}
}

// NewConnectionEstablishedFrame 构造握手确认帧
func NewConnectionEstablishedFrame(connID string) *OutFrame {
	return &OutFrame{Type: FrameConnectionEstablished, Data: establishedData{
		ConnectionID: connID,
		Timestamp:    nowISO(),
		ServerInfo: ServerInfo{
			Version:  ServerVersion,
			Features: serverFeatures,
		},
	}}
}

// NewHeartbeatFrame 构造心跳帧
func NewHeartbeatFrame() *OutFrame {
	return &OutFrame{Type: FrameHeartbeat, Data: map[string]any{
		"timestamp": nowISO(),
	}}
}

// NewRoomEventFrame 构造房间成员变更事件帧（user_joined_room / user_left_room）
func NewRoomEventFrame(frameType, connID, room string) *OutFrame {
	return &OutFrame{Type: frameType, Data: roomEventData{
		ConnectionID: connID,
		RoomName:     room,
		Timestamp:    nowISO(),
	}}
}
