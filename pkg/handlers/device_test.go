package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podprint/realtime/pkg/ws"
)

func TestDeviceConnect(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{DeviceID: "printer-1"})

	e.dispatch(id, `{"type":"device_connect","data":{
		"device_id":"printer-1",
		"device_type":"fdm_printer",
		"serial_number":"SN-001",
		"capabilities":["print","pause"]}}`)

	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 1)
	assert.Equal(t, "Device connected successfully", frames[0].Data["message"])
	assert.Equal(t, "printer-1", frames[0].Data["device_id"])

	// 设备自身的连接也收到 device_connected 事件
	require.Len(t, sock.framesOfType(t, "device_connected"), 1)

	state, err := e.device.State(context.Background(), "printer-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "connected", state.Status)
	assert.Equal(t, "fdm_printer", state.DeviceType)
	assert.Equal(t, "SN-001", state.SerialNumber)
	assert.Equal(t, id, state.ConnectionID)
	assert.Equal(t, []string{"print", "pause"}, state.Capabilities)
}

func TestDeviceConnectMissingID(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"device_connect","data":{}}`)

	frames := sock.framesOfType(t, ws.FrameError)
	require.Len(t, frames, 1)
	assert.Equal(t, "device_id is required", frames[0].Data["message"])
}

func TestDeviceDisconnect(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{DeviceID: "printer-1"})
	_, other := e.connect(t, ws.Metadata{})
	e.dispatch(id, `{"type":"device_connect","data":{"device_id":"printer-1"}}`)

	e.dispatch(id, `{"type":"device_disconnect","data":{"device_id":"printer-1"}}`)

	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 2)
	assert.Equal(t, "Device disconnected", frames[1].Data["message"])

	// 其余连接收到广播
	require.Len(t, other.framesOfType(t, "device_disconnected"), 1)

	state, err := e.device.State(context.Background(), "printer-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "disconnected", state.Status)
}

func TestSensorDataFanout(t *testing.T) {
	e := newEnv(t)
	devConn, devSock := e.connect(t, ws.Metadata{DeviceID: "printer-1"})
	subConn, subSock := e.connect(t, ws.Metadata{})
	e.dispatch(devConn, `{"type":"device_connect","data":{"device_id":"printer-1"}}`)
	e.dispatch(subConn, `{"type":"subscribe_device","data":{"device_id":"printer-1"}}`)

	e.dispatch(devConn, `{"type":"sensor_data","data":{
		"device_id":"printer-1","sensor_type":"temperature","value":25.5,"unit":"C"}}`)

	// 订阅者收到读数
	readings := subSock.framesOfType(t, "sensor_data")
	require.Len(t, readings, 1)
	assert.Equal(t, "printer-1", readings[0].Data["device_id"])
	assert.Equal(t, 25.5, readings[0].Data["value"])
	assert.NotEmpty(t, readings[0].Data["data_id"])

	// 上报方收到确认，data_id 一致
	acks := devSock.framesOfType(t, ws.FrameSuccess)
	var ack *decodedFrame
	for i := range acks {
		if acks[i].Data["message"] == "Sensor data received" {
			ack = &acks[i]
		}
	}
	require.NotNil(t, ack)
	assert.Equal(t, readings[0].Data["data_id"], ack.Data["data_id"])

	// 状态记录最近读数
	state, err := e.device.State(context.Background(), "printer-1")
	require.NoError(t, err)
	require.NotNil(t, state.LastData)
	assert.Equal(t, 25.5, state.LastData.Value)
}

func TestSensorDataValidation(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"sensor_data","data":{"device_id":"printer-1"}}`)

	frames := sock.framesOfType(t, ws.FrameError)
	require.Len(t, frames, 1)
	assert.Equal(t, "device_id, sensor_type, and value are required", frames[0].Data["message"])
}

func TestSensorAlertOnThresholdBreach(t *testing.T) {
	e := newEnv(t)
	devConn, _ := e.connect(t, ws.Metadata{DeviceID: "printer-1"})
	_, observer := e.connect(t, ws.Metadata{})

	tests := []struct {
		name      string
		payload   string
		wantAlert int
	}{
		{"above max", `{"device_id":"printer-1","sensor_type":"temperature","value":45.0}`, 1},
		{"within range", `{"device_id":"printer-1","sensor_type":"temperature","value":25.0}`, 1},
		{"below min", `{"device_id":"printer-1","sensor_type":"humidity","value":10.0}`, 2},
		{"unknown sensor", `{"device_id":"printer-1","sensor_type":"vibration","value":9999.0}`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.dispatch(devConn, `{"type":"sensor_data","data":`+tt.payload+`}`)
			alerts := observer.framesOfType(t, "sensor_alert")
			assert.Len(t, alerts, tt.wantAlert)
		})
	}

	alerts := observer.framesOfType(t, "sensor_alert")
	require.Len(t, alerts, 2)
	assert.Equal(t, "medium", alerts[0].Data["severity"])
	assert.Equal(t, 45.0, alerts[0].Data["value"])
}

func TestDeviceStatusUpdate(t *testing.T) {
	e := newEnv(t)
	id, _ := e.connect(t, ws.Metadata{DeviceID: "printer-1"})
	_, observer := e.connect(t, ws.Metadata{})
	e.dispatch(id, `{"type":"device_connect","data":{"device_id":"printer-1"}}`)

	e.dispatch(id, `{"type":"device_status","data":{
		"device_id":"printer-1","status":"printing","battery_level":80.0,"signal_strength":-40.0}}`)

	updates := observer.framesOfType(t, "device_status_update")
	require.Len(t, updates, 1)
	assert.Equal(t, "printing", updates[0].Data["status"])
	assert.Equal(t, 80.0, updates[0].Data["battery_level"])

	state, err := e.device.State(context.Background(), "printer-1")
	require.NoError(t, err)
	assert.Equal(t, "printing", state.Status)
	require.NotNil(t, state.BatteryLevel)
	assert.Equal(t, 80.0, *state.BatteryLevel)
}

func TestDeviceCommandResult(t *testing.T) {
	e := newEnv(t)
	opConn, opSock := e.connect(t, ws.Metadata{})
	_, devSock := e.connect(t, ws.Metadata{DeviceID: "printer-1"})

	e.dispatch(opConn, `{"type":"device_command","data":{
		"device_id":"printer-1","command":"restart"}}`)

	results := devSock.framesOfType(t, "command_result")
	require.Len(t, results, 1)
	result := results[0].Data["result"].(map[string]any)
	assert.Equal(t, "restart", result["action"])
	assert.Equal(t, float64(5), result["delay"])

	acks := opSock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, acks, 1)
	assert.Equal(t, "Command sent", acks[0].Data["message"])
}

func TestExecuteCommand(t *testing.T) {
	tests := []struct {
		command    string
		parameters map[string]any
		want       map[string]any
	}{
		{"restart", nil, map[string]any{"action": "restart", "delay": 5}},
		{"reset", nil, map[string]any{"action": "factory_reset"}},
		{"get_status", nil, map[string]any{"action": "status_request"}},
		{"test_sensors", nil, map[string]any{"action": "sensor_test", "duration": 10}},
		{"test_sensors", map[string]any{"duration": 30}, map[string]any{"action": "sensor_test", "duration": 30}},
		{"fly", nil, map[string]any{"action": "unknown_command"}},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			assert.Equal(t, tt.want, executeCommand(tt.command, tt.parameters))
		})
	}
}

func TestKeepalive(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{DeviceID: "printer-1"})

	e.dispatch(id, `{"type":"keepalive","data":{"device_id":"printer-1"}}`)

	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 1)
	assert.Equal(t, "Keepalive acknowledged", frames[0].Data["message"])
}

func TestCalibration(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{DeviceID: "printer-1"})
	e.dispatch(id, `{"type":"device_connect","data":{"device_id":"printer-1"}}`)

	e.dispatch(id, `{"type":"calibration","data":{
		"device_id":"printer-1","calibration_data":{"z_offset":0.2}}}`)

	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 2)
	assert.Equal(t, "Calibration data saved", frames[1].Data["message"])

	state, err := e.device.State(context.Background(), "printer-1")
	require.NoError(t, err)
	assert.Equal(t, 0.2, state.Calibration["z_offset"])
	assert.NotEmpty(t, state.LastCalibration)
}

func TestFirmwareUpdateCheck(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{DeviceID: "printer-1"})

	t.Run("outdated firmware", func(t *testing.T) {
		e.dispatch(id, `{"type":"firmware_update","data":{
			"device_id":"printer-1","firmware_version":"1.0.0"}}`)

		notices := sock.framesOfType(t, "firmware_update_available")
		require.Len(t, notices, 1)
		assert.Equal(t, "1.0.0", notices[0].Data["current_version"])
		assert.Equal(t, latestFirmwareVersion, notices[0].Data["new_version"])

		acks := sock.framesOfType(t, ws.FrameSuccess)
		require.Len(t, acks, 1)
		assert.Equal(t, true, acks[0].Data["update_available"])
	})

	t.Run("current firmware", func(t *testing.T) {
		e.dispatch(id, `{"type":"firmware_update","data":{
			"device_id":"printer-1","firmware_version":"1.1.0"}}`)

		// 没有新的更新通知
		assert.Len(t, sock.framesOfType(t, "firmware_update_available"), 1)
		acks := sock.framesOfType(t, ws.FrameSuccess)
		require.Len(t, acks, 2)
		assert.Equal(t, false, acks[1].Data["update_available"])
	})
}

func TestAllDevices(t *testing.T) {
	e := newEnv(t)
	id1, _ := e.connect(t, ws.Metadata{DeviceID: "printer-1"})
	id2, _ := e.connect(t, ws.Metadata{DeviceID: "printer-2"})
	e.dispatch(id1, `{"type":"device_connect","data":{"device_id":"printer-1"}}`)
	e.dispatch(id2, `{"type":"device_connect","data":{"device_id":"printer-2"}}`)

	devices, err := e.device.AllDevices(context.Background())
	require.NoError(t, err)
	require.Len(t, devices, 2)

	ids := []string{devices[0].DeviceID, devices[1].DeviceID}
	assert.ElementsMatch(t, []string{"printer-1", "printer-2"}, ids)

	state, err := e.device.State(context.Background(), "no-such-device")
	require.NoError(t, err)
	assert.Nil(t, state)
}
