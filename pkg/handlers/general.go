package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/podprint/realtime/pkg/errors"
	"github.com/podprint/realtime/pkg/ws"
)

// General 通用消息处理器：ping 应答、房间进出、连接信息与统计查询、
// 设备订阅。订阅设备即加入 device_<id> 房间，传感器数据按房间扇出。
type General struct {
	registry *ws.Registry
}

// NewGeneral 创建通用处理器
func NewGeneral(registry *ws.Registry) *General {
	return &General{registry: registry}
}

// Register 挂载处理器表
func (h *General) Register(d *ws.Dispatcher) error {
	return d.RegisterAll(map[string]ws.Handler{
		"ping":                h.handlePing,
		"join_room":           h.handleJoinRoom,
		"leave_room":          h.handleLeaveRoom,
		"get_connection_info": h.handleGetConnectionInfo,
		"get_stats":           h.handleGetStats,
		"subscribe_device":    h.handleSubscribeDevice,
		"unsubscribe_device":  h.handleUnsubscribeDevice,
	})
}

type pingData struct {
	Timestamp string `json:"timestamp"`
}

func (h *General) handlePing(ctx context.Context, connID string, data json.RawMessage) error {
	var req pingData
	_ = json.Unmarshal(data, &req)
	h.registry.SendTo(connID, ws.NewSuccessFrame("pong", map[string]any{
		"timestamp": req.Timestamp,
	}))
	return nil
}

type roomData struct {
	RoomName string `json:"room_name"`
}

func (h *General) handleJoinRoom(ctx context.Context, connID string, data json.RawMessage) error {
	var req roomData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.RoomName == "" {
		return errors.MissingField("room_name")
	}
	if err := h.registry.JoinRoom(connID, req.RoomName); err != nil {
		return errors.ErrBadRequest.WithMessage(err.Error())
	}
	h.registry.SendTo(connID, ws.NewSuccessFrame(
		fmt.Sprintf("Joined room: %s", req.RoomName), nil))
	return nil
}

func (h *General) handleLeaveRoom(ctx context.Context, connID string, data json.RawMessage) error {
	var req roomData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.RoomName == "" {
		return errors.MissingField("room_name")
	}
	h.registry.LeaveRoom(connID, req.RoomName)
	h.registry.SendTo(connID, ws.NewSuccessFrame(
		fmt.Sprintf("Left room: %s", req.RoomName), nil))
	return nil
}

func (h *General) handleGetConnectionInfo(ctx context.Context, connID string, data json.RawMessage) error {
	info, err := h.registry.Info(connID)
	if err != nil {
		return errors.ErrNotFound.WithError(err)
	}
	h.registry.SendTo(connID, ws.NewSuccessFrame("Connection info", map[string]any{
		"connection_id":    info.ConnectionID,
		"user_id":          info.UserID,
		"device_id":        info.DeviceID,
		"rooms":            info.Rooms,
		"connected_at":     info.ConnectedAt,
		"last_activity_at": info.LastActivity,
	}))
	return nil
}

func (h *General) handleGetStats(ctx context.Context, connID string, data json.RawMessage) error {
	stats := h.registry.Stats()
	h.registry.SendTo(connID, ws.NewSuccessFrame("Server stats", map[string]any{
		"total_connections":  stats.TotalConnections,
		"active_connections": stats.ActiveConnections,
		"active_rooms":       stats.ActiveRooms,
		"connected_users":    stats.ConnectedUsers,
		"connected_devices":  stats.ConnectedDevices,
		"total_messages":     stats.TotalMessagesSent,
	}))
	return nil
}

type deviceSubData struct {
	DeviceID string `json:"device_id"`
}

func (h *General) handleSubscribeDevice(ctx context.Context, connID string, data json.RawMessage) error {
	var req deviceSubData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.DeviceID == "" {
		return errors.MissingField("device_id")
	}
	if err := h.registry.JoinRoom(connID, DeviceRoom(req.DeviceID)); err != nil {
		return errors.ErrBadRequest.WithMessage(err.Error())
	}
	h.registry.SendTo(connID, ws.NewSuccessFrame(
		fmt.Sprintf("Subscribed to device %s", req.DeviceID), nil))
	return nil
}

func (h *General) handleUnsubscribeDevice(ctx context.Context, connID string, data json.RawMessage) error {
	var req deviceSubData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.DeviceID == "" {
		return errors.MissingField("device_id")
	}
	h.registry.LeaveRoom(connID, DeviceRoom(req.DeviceID))
	h.registry.SendTo(connID, ws.NewSuccessFrame(
		fmt.Sprintf("Unsubscribed from device %s", req.DeviceID), nil))
	return nil
}
