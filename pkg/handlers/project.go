package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/podprint/realtime/pkg/errors"
	"github.com/podprint/realtime/pkg/ws"
)

// ProjectRoom 返回项目订阅房间名
func ProjectRoom(projectID string) string {
	return "project_" + projectID
}

// Project 打印项目消息处理器：订阅管理与项目状态、打印进度、
// 完成、出错事件的房间扇出。
type Project struct {
	registry *ws.Registry
}

// NewProject 创建项目处理器
func NewProject(registry *ws.Registry) *Project {
	return &Project{registry: registry}
}

// Register 挂载处理器表
func (h *Project) Register(d *ws.Dispatcher) error {
	return d.RegisterAll(map[string]ws.Handler{
		"subscribe_project":   h.handleSubscribe,
		"unsubscribe_project": h.handleUnsubscribe,
		"project_update":      h.handleUpdate,
		"printing_progress":   h.handlePrintingProgress,
		"project_completed":   h.handleCompleted,
		"project_error":       h.handleError,
	})
}

type projectIDData struct {
	ProjectID string `json:"project_id"`
}

func (h *Project) handleSubscribe(ctx context.Context, connID string, data json.RawMessage) error {
	var req projectIDData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.ProjectID == "" {
		return errors.MissingField("project_id")
	}
	if err := h.registry.JoinRoom(connID, ProjectRoom(req.ProjectID)); err != nil {
		return errors.ErrBadRequest.WithMessage(err.Error())
	}
	h.registry.SendTo(connID, ws.NewSuccessFrame(
		fmt.Sprintf("Subscribed to project %s", req.ProjectID), map[string]any{
			"project_id": req.ProjectID,
		}))
	return nil
}

func (h *Project) handleUnsubscribe(ctx context.Context, connID string, data json.RawMessage) error {
	var req projectIDData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.ProjectID == "" {
		return errors.MissingField("project_id")
	}
	h.registry.LeaveRoom(connID, ProjectRoom(req.ProjectID))
	h.registry.SendTo(connID, ws.NewSuccessFrame(
		fmt.Sprintf("Unsubscribed from project %s", req.ProjectID), nil))
	return nil
}

type projectUpdateData struct {
	ProjectID string   `json:"project_id"`
	Status    string   `json:"status"`
	Progress  *float64 `json:"progress"`
}

func (h *Project) handleUpdate(ctx context.Context, connID string, data json.RawMessage) error {
	var req projectUpdateData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.ProjectID == "" {
		return errors.MissingField("project_id")
	}

	h.registry.SendToRoom(ProjectRoom(req.ProjectID), &ws.OutFrame{
		Type: "project_status_update",
		Data: map[string]any{
			"project_id": req.ProjectID,
			"status":     req.Status,
			"progress":   req.Progress,
			"timestamp":  isoNow(),
		},
	}, "")

	h.registry.SendTo(connID, ws.NewSuccessFrame("Project update sent", nil))
	return nil
}

type printingProgressData struct {
	ProjectID              string   `json:"project_id"`
	LayerProgress          *float64 `json:"layer_progress"`
	TotalLayers            *float64 `json:"total_layers"`
	Percentage             *float64 `json:"percentage"`
	EstimatedTimeRemaining any      `json:"estimated_time_remaining"`
	CurrentLayerTime       any      `json:"current_layer_time"`
}

func (h *Project) handlePrintingProgress(ctx context.Context, connID string, data json.RawMessage) error {
	var req printingProgressData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.ProjectID == "" {
		return errors.MissingField("project_id")
	}

	// 层数已知时按层数折算百分比，覆盖客户端给出的值
	percentage := req.Percentage
	if req.LayerProgress != nil && req.TotalLayers != nil && *req.TotalLayers > 0 {
		p := *req.LayerProgress / *req.TotalLayers * 100
		percentage = &p
	}

	h.registry.SendToRoom(ProjectRoom(req.ProjectID), &ws.OutFrame{
		Type: "printing_progress",
		Data: map[string]any{
			"project_id":               req.ProjectID,
			"layer_progress":           req.LayerProgress,
			"total_layers":             req.TotalLayers,
			"percentage":               percentage,
			"estimated_time_remaining": req.EstimatedTimeRemaining,
			"current_layer_time":       req.CurrentLayerTime,
			"timestamp":                isoNow(),
		},
	}, "")
	return nil
}

type projectCompletedData struct {
	ProjectID   string `json:"project_id"`
	DownloadURL string `json:"download_url"`
}

func (h *Project) handleCompleted(ctx context.Context, connID string, data json.RawMessage) error {
	var req projectCompletedData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.ProjectID == "" {
		return errors.MissingField("project_id")
	}

	h.registry.SendToRoom(ProjectRoom(req.ProjectID), &ws.OutFrame{
		Type: "project_completed",
		Data: map[string]any{
			"project_id":   req.ProjectID,
			"status":       "completed",
			"download_url": req.DownloadURL,
			"completed_at": isoNow(),
		},
	}, "")
	return nil
}

type projectErrorData struct {
	ProjectID    string `json:"project_id"`
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
}

func (h *Project) handleError(ctx context.Context, connID string, data json.RawMessage) error {
	var req projectErrorData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.ProjectID == "" {
		return errors.MissingField("project_id")
	}

	h.registry.SendToRoom(ProjectRoom(req.ProjectID), &ws.OutFrame{
		Type: "project_error",
		Data: map[string]any{
			"project_id":    req.ProjectID,
			"error_type":    req.ErrorType,
			"error_message": req.ErrorMessage,
			"timestamp":     isoNow(),
		},
	}, "")
	return nil
}
