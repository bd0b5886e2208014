package handlers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/podprint/realtime/pkg/errors"
	"github.com/podprint/realtime/pkg/ws"
)

// System 系统级消息处理器：全局告警、组件状态、定向用户通知
// 与全员广播。
type System struct {
	registry *ws.Registry
}

// NewSystem 创建系统处理器
func NewSystem(registry *ws.Registry) *System {
	return &System{registry: registry}
}

// Register 挂载处理器表
func (h *System) Register(d *ws.Dispatcher) error {
	return d.RegisterAll(map[string]ws.Handler{
		"system_alert":      h.handleAlert,
		"system_status":     h.handleStatus,
		"user_notification": h.handleUserNotification,
		"broadcast_message": h.handleBroadcast,
	})
}

type systemAlertData struct {
	Severity string         `json:"severity"`
	Title    string         `json:"title"`
	Message  string         `json:"message"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

func (h *System) handleAlert(ctx context.Context, connID string, data json.RawMessage) error {
	var req systemAlertData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	severity := req.Severity
	if severity == "" {
		severity = "info"
	}
	source := req.Source
	if source == "" {
		source = "system"
	}

	h.registry.BroadcastAll(&ws.OutFrame{
		Type: "system_alert",
		Data: map[string]any{
			"alert_id":  uuid.NewString(),
			"severity":  severity,
			"title":     req.Title,
			"message":   req.Message,
			"source":    source,
			"timestamp": isoNow(),
			"metadata":  req.Metadata,
		},
	}, "")

	h.registry.SendTo(connID, ws.NewSuccessFrame("System alert sent", nil))
	return nil
}

type systemStatusData struct {
	Component    string `json:"component"`
	Status       string `json:"status"`
	ResponseTime any    `json:"response_time"`
}

func (h *System) handleStatus(ctx context.Context, connID string, data json.RawMessage) error {
	var req systemStatusData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}

	h.registry.BroadcastAll(&ws.OutFrame{
		Type: "system_status",
		Data: map[string]any{
			"component":     req.Component,
			"status":        req.Status,
			"response_time": req.ResponseTime,
			"timestamp":     isoNow(),
		},
	}, "")

	h.registry.SendTo(connID, ws.NewSuccessFrame("System status sent", nil))
	return nil
}

type userNotificationData struct {
	UserID           string `json:"user_id"`
	Title            string `json:"title"`
	Message          string `json:"message"`
	NotificationType string `json:"notification_type"`
}

func (h *System) handleUserNotification(ctx context.Context, connID string, data json.RawMessage) error {
	var req userNotificationData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.UserID == "" {
		return errors.MissingField("user_id")
	}
	notificationType := req.NotificationType
	if notificationType == "" {
		notificationType = "info"
	}

	sent := h.registry.SendToUser(req.UserID, &ws.OutFrame{
		Type: "user_notification",
		Data: map[string]any{
			"notification_id":   uuid.NewString(),
			"title":             req.Title,
			"message":           req.Message,
			"notification_type": notificationType,
			"timestamp":         isoNow(),
			"read":              false,
		},
	})

	h.registry.SendTo(connID, ws.NewSuccessFrame("User notification sent", map[string]any{
		"sent_to": sent,
	}))
	return nil
}

type broadcastMessageData struct {
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	From        string `json:"from"`
}

func (h *System) handleBroadcast(ctx context.Context, connID string, data json.RawMessage) error {
	var req broadcastMessageData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.Message == "" {
		return errors.MissingField("message")
	}
	messageType := req.MessageType
	if messageType == "" {
		messageType = "info"
	}
	from := req.From
	if from == "" {
		from = "system"
	}

	h.registry.BroadcastAll(&ws.OutFrame{
		Type: "broadcast_message",
		Data: map[string]any{
			"message":      req.Message,
			"message_type": messageType,
			"timestamp":    isoNow(),
			"from":         from,
		},
	}, "")

	h.registry.SendTo(connID, ws.NewSuccessFrame("Broadcast message sent", nil))
	return nil
}
