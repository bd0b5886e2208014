package handlers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/podprint/realtime/pkg/cache"
	"github.com/podprint/realtime/pkg/errors"
	"github.com/podprint/realtime/pkg/ws"
)

// deviceKeyPrefix 设备状态在缓存中的键前缀
const deviceKeyPrefix = "device:"

// latestFirmwareVersion 当前最新固件版本
const latestFirmwareVersion = "1.1.0"

// DeviceRoom 返回设备订阅房间名
func DeviceRoom(deviceID string) string {
	return "device_" + deviceID
}

// DeviceState 设备运行时状态，存于缓存供跨请求查询
type DeviceState struct {
	DeviceID        string         `json:"device_id"`
	DeviceType      string         `json:"device_type,omitempty"`
	SerialNumber    string         `json:"serial_number,omitempty"`
	ConnectionID    string         `json:"connection_id"`
	Status          string         `json:"status"`
	LastSeen        string         `json:"last_seen"`
	Capabilities    []string       `json:"capabilities,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	BatteryLevel    *float64       `json:"battery_level,omitempty"`
	SignalStrength  *float64       `json:"signal_strength,omitempty"`
	LastData        *SensorReading `json:"last_data,omitempty"`
	Calibration     map[string]any `json:"calibration,omitempty"`
	LastCalibration string         `json:"last_calibration,omitempty"`
}

// SensorReading 单条传感器读数
type SensorReading struct {
	DeviceID     string  `json:"device_id"`
	SensorType   string  `json:"sensor_type"`
	Value        float64 `json:"value"`
	Unit         string  `json:"unit,omitempty"`
	Timestamp    string  `json:"timestamp"`
	ConnectionID string  `json:"connection_id"`
	DataID       string  `json:"data_id"`
}

// sensorThreshold 传感器告警阈值区间
type sensorThreshold struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// alertThresholds 各类传感器的告警阈值
var alertThresholds = map[string]sensorThreshold{
	"temperature": {Min: 18.0, Max: 30.0},
	"humidity":    {Min: 30.0, Max: 70.0},
	"pressure":    {Min: 900.0, Max: 1100.0},
}

// commandActions 设备命令到执行动作的映射
var commandActions = map[string]string{
	"restart":       "restart",
	"reset":         "factory_reset",
	"calibrate":     "start_calibration",
	"update_config": "config_update",
	"get_status":    "status_request",
	"test_sensors":  "sensor_test",
}

// Device IoT 设备消息处理器：设备注册、传感器数据接入与扇出、
// 状态上报、命令下发、校准与固件检查。设备状态写入缓存，
// HTTP 管理端点与其他处理器可随时读取。
type Device struct {
	registry *ws.Registry
	store    cache.Cache
	log      *zap.Logger
}

// NewDevice 创建设备处理器
func NewDevice(registry *ws.Registry, store cache.Cache, log *zap.Logger) *Device {
	if log == nil {
		log = zap.NewNop()
	}
	return &Device{registry: registry, store: store, log: log}
}

// Register 挂载处理器表
func (h *Device) Register(d *ws.Dispatcher) error {
	return d.RegisterAll(map[string]ws.Handler{
		"device_connect":    h.handleDeviceConnect,
		"device_disconnect": h.handleDeviceDisconnect,
		"sensor_data":       h.handleSensorData,
		"device_status":     h.handleDeviceStatus,
		"device_command":    h.handleDeviceCommand,
		"keepalive":         h.handleKeepalive,
		"calibration":       h.handleCalibration,
		"firmware_update":   h.handleFirmwareUpdate,
	})
}

// State 查询设备状态；不存在返回 (nil, nil)
func (h *Device) State(ctx context.Context, deviceID string) (*DeviceState, error) {
	var state DeviceState
	err := h.store.Get(ctx, deviceKeyPrefix+deviceID, &state)
	if err != nil {
		if errors.Is(err, cache.ErrCacheNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

// AllDevices 列出全部已知设备状态
func (h *Device) AllDevices(ctx context.Context) ([]*DeviceState, error) {
	keys, err := h.store.Keys(ctx, deviceKeyPrefix+"*")
	if err != nil {
		return nil, err
	}
	states := make([]*DeviceState, 0, len(keys))
	for _, key := range keys {
		var state DeviceState
		if err := h.store.Get(ctx, key, &state); err != nil {
			continue
		}
		states = append(states, &state)
	}
	return states, nil
}

func (h *Device) saveState(ctx context.Context, state *DeviceState) {
	if err := h.store.Set(ctx, deviceKeyPrefix+state.DeviceID, state, 0); err != nil {
		h.log.Warn("save device state failed",
			zap.String("device_id", state.DeviceID), zap.Error(err))
	}
}

type deviceConnectData struct {
	DeviceID     string         `json:"device_id"`
	DeviceType   string         `json:"device_type"`
	SerialNumber string         `json:"serial_number"`
	Capabilities []string       `json:"capabilities"`
	Metadata     map[string]any `json:"metadata"`
}

func (h *Device) handleDeviceConnect(ctx context.Context, connID string, data json.RawMessage) error {
	var req deviceConnectData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.DeviceID == "" {
		return errors.MissingField("device_id")
	}

	h.saveState(ctx, &DeviceState{
		DeviceID:     req.DeviceID,
		DeviceType:   req.DeviceType,
		SerialNumber: req.SerialNumber,
		ConnectionID: connID,
		Status:       "connected",
		LastSeen:     isoNow(),
		Capabilities: req.Capabilities,
		Metadata:     req.Metadata,
	})

	h.registry.SendToDevice(req.DeviceID, &ws.OutFrame{
		Type: "device_connected",
		Data: map[string]any{
			"device_id": req.DeviceID,
			"timestamp": isoNow(),
		},
	})

	h.registry.SendTo(connID, ws.NewSuccessFrame("Device connected successfully", map[string]any{
		"device_id":   req.DeviceID,
		"server_time": isoNow(),
	}))
	h.log.Info("device connected", zap.String("device_id", req.DeviceID))
	return nil
}

type deviceIDData struct {
	DeviceID string `json:"device_id"`
}

func (h *Device) handleDeviceDisconnect(ctx context.Context, connID string, data json.RawMessage) error {
	var req deviceIDData
	_ = json.Unmarshal(data, &req)

	if req.DeviceID != "" {
		if state, err := h.State(ctx, req.DeviceID); err == nil && state != nil {
			state.Status = "disconnected"
			state.LastSeen = isoNow()
			h.saveState(ctx, state)

			h.registry.BroadcastAll(&ws.OutFrame{
				Type: "device_disconnected",
				Data: map[string]any{
					"device_id": req.DeviceID,
					"timestamp": isoNow(),
				},
			}, "")
			h.log.Info("device disconnected", zap.String("device_id", req.DeviceID))
		}
	}

	h.registry.SendTo(connID, ws.NewSuccessFrame("Device disconnected", nil))
	return nil
}

type sensorData struct {
	DeviceID   string   `json:"device_id"`
	SensorType string   `json:"sensor_type"`
	Value      *float64 `json:"value"`
	Unit       string   `json:"unit"`
	Timestamp  string   `json:"timestamp"`
}

func (h *Device) handleSensorData(ctx context.Context, connID string, data json.RawMessage) error {
	var req sensorData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.DeviceID == "" || req.SensorType == "" || req.Value == nil {
		return errors.ErrBadRequest.WithMessage("device_id, sensor_type, and value are required")
	}

	timestamp := req.Timestamp
	if timestamp == "" {
		timestamp = isoNow()
	}
	reading := &SensorReading{
		DeviceID:     req.DeviceID,
		SensorType:   req.SensorType,
		Value:        *req.Value,
		Unit:         req.Unit,
		Timestamp:    timestamp,
		ConnectionID: connID,
		DataID:       uuid.NewString(),
	}

	if state, err := h.State(ctx, req.DeviceID); err == nil && state != nil {
		state.LastSeen = isoNow()
		state.LastData = reading
		h.saveState(ctx, state)
	}

	// 扇出到设备订阅房间
	h.registry.SendToRoom(DeviceRoom(req.DeviceID), &ws.OutFrame{
		Type: "sensor_data",
		Data: reading,
	}, "")

	h.processSensorAlerts(reading)

	h.registry.SendTo(connID, ws.NewSuccessFrame("Sensor data received", map[string]any{
		"data_id": reading.DataID,
	}))
	return nil
}

// processSensorAlerts 读数越过阈值时向全部连接广播告警
func (h *Device) processSensorAlerts(reading *SensorReading) {
	threshold, ok := alertThresholds[reading.SensorType]
	if !ok {
		return
	}
	if reading.Value >= threshold.Min && reading.Value <= threshold.Max {
		return
	}
	h.registry.BroadcastAll(&ws.OutFrame{
		Type: "sensor_alert",
		Data: map[string]any{
			"device_id":   reading.DeviceID,
			"sensor_type": reading.SensorType,
			"value":       reading.Value,
			"threshold":   threshold,
			"severity":    "medium",
			"timestamp":   isoNow(),
		},
	}, "")
}

type deviceStatusData struct {
	DeviceID       string   `json:"device_id"`
	Status         string   `json:"status"`
	BatteryLevel   *float64 `json:"battery_level"`
	SignalStrength *float64 `json:"signal_strength"`
}

func (h *Device) handleDeviceStatus(ctx context.Context, connID string, data json.RawMessage) error {
	var req deviceStatusData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.DeviceID == "" {
		return errors.MissingField("device_id")
	}

	if state, err := h.State(ctx, req.DeviceID); err == nil && state != nil {
		status := req.Status
		if status == "" {
			status = "unknown"
		}
		state.Status = status
		state.BatteryLevel = req.BatteryLevel
		state.SignalStrength = req.SignalStrength
		state.LastSeen = isoNow()
		h.saveState(ctx, state)
	}

	h.registry.BroadcastAll(&ws.OutFrame{
		Type: "device_status_update",
		Data: map[string]any{
			"device_id":       req.DeviceID,
			"status":          req.Status,
			"battery_level":   req.BatteryLevel,
			"signal_strength": req.SignalStrength,
			"timestamp":       isoNow(),
		},
	}, "")

	h.registry.SendTo(connID, ws.NewSuccessFrame("Status updated", nil))
	return nil
}

type deviceCommandData struct {
	DeviceID   string         `json:"device_id"`
	Command    string         `json:"command"`
	Parameters map[string]any `json:"parameters"`
}

func (h *Device) handleDeviceCommand(ctx context.Context, connID string, data json.RawMessage) error {
	var req deviceCommandData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.DeviceID == "" || req.Command == "" {
		return errors.ErrBadRequest.WithMessage("device_id and command are required")
	}

	result := executeCommand(req.Command, req.Parameters)

	h.registry.SendToDevice(req.DeviceID, &ws.OutFrame{
		Type: "command_result",
		Data: map[string]any{
			"command":   req.Command,
			"result":    result,
			"timestamp": isoNow(),
		},
	})

	h.registry.SendTo(connID, ws.NewSuccessFrame("Command sent", map[string]any{
		"command": req.Command,
		"result":  result,
	}))
	return nil
}

// executeCommand 将命令翻译为设备端动作描述
func executeCommand(command string, parameters map[string]any) map[string]any {
	action, ok := commandActions[command]
	if !ok {
		return map[string]any{"action": "unknown_command"}
	}
	result := map[string]any{"action": action}
	switch command {
	case "restart":
		result["delay"] = 5
	case "calibrate":
		result["sensors"] = parameters["sensors"]
	case "update_config":
		result["config"] = parameters["config"]
	case "test_sensors":
		duration, ok := parameters["duration"]
		if !ok {
			duration = 10
		}
		result["duration"] = duration
	}
	return result
}

func (h *Device) handleKeepalive(ctx context.Context, connID string, data json.RawMessage) error {
	var req deviceIDData
	_ = json.Unmarshal(data, &req)

	if req.DeviceID != "" {
		if state, err := h.State(ctx, req.DeviceID); err == nil && state != nil {
			state.LastSeen = isoNow()
			h.saveState(ctx, state)
		}
	}

	h.registry.SendTo(connID, ws.NewSuccessFrame("Keepalive acknowledged", nil))
	return nil
}

type calibrationData struct {
	DeviceID        string         `json:"device_id"`
	CalibrationData map[string]any `json:"calibration_data"`
}

func (h *Device) handleCalibration(ctx context.Context, connID string, data json.RawMessage) error {
	var req calibrationData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.DeviceID == "" {
		return errors.MissingField("device_id")
	}

	if state, err := h.State(ctx, req.DeviceID); err == nil && state != nil {
		state.Calibration = req.CalibrationData
		state.LastCalibration = isoNow()
		h.saveState(ctx, state)
	}

	h.registry.SendTo(connID, ws.NewSuccessFrame("Calibration data saved", nil))
	return nil
}

type firmwareUpdateData struct {
	DeviceID        string `json:"device_id"`
	FirmwareVersion string `json:"firmware_version"`
}

func (h *Device) handleFirmwareUpdate(ctx context.Context, connID string, data json.RawMessage) error {
	var req firmwareUpdateData
	if err := json.Unmarshal(data, &req); err != nil {
		return errors.ErrBadRequest.WithError(err)
	}
	if req.DeviceID == "" {
		return errors.MissingField("device_id")
	}

	updateAvailable := req.FirmwareVersion != latestFirmwareVersion
	if updateAvailable {
		h.registry.SendToDevice(req.DeviceID, &ws.OutFrame{
			Type: "firmware_update_available",
			Data: map[string]any{
				"current_version": req.FirmwareVersion,
				"new_version":     latestFirmwareVersion,
				"update_url":      "https://firmware.example.com/device_" + latestFirmwareVersion + ".bin",
				"changelog":       "Bug fixes and performance improvements",
			},
		})
	}

	h.registry.SendTo(connID, ws.NewSuccessFrame("Firmware update check completed", map[string]any{
		"update_available": updateAvailable,
	}))
	return nil
}
