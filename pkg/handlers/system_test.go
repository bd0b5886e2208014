package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podprint/realtime/pkg/ws"
)

func TestSystemAlert(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})
	_, observer := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"system_alert","data":{
		"title":"Disk pressure","message":"storage above 90%","severity":"warning"}}`)

	alerts := observer.framesOfType(t, "system_alert")
	require.Len(t, alerts, 1)
	assert.Equal(t, "warning", alerts[0].Data["severity"])
	assert.Equal(t, "Disk pressure", alerts[0].Data["title"])
	assert.NotEmpty(t, alerts[0].Data["alert_id"])

	acks := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, acks, 1)
	assert.Equal(t, "System alert sent", acks[0].Data["message"])
}

func TestSystemAlertDefaults(t *testing.T) {
	e := newEnv(t)
	id, _ := e.connect(t, ws.Metadata{})
	_, observer := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"system_alert","data":{"message":"hello"}}`)

	alerts := observer.framesOfType(t, "system_alert")
	require.Len(t, alerts, 1)
	assert.Equal(t, "info", alerts[0].Data["severity"])
	assert.Equal(t, "system", alerts[0].Data["source"])
}

func TestSystemStatus(t *testing.T) {
	e := newEnv(t)
	id, _ := e.connect(t, ws.Metadata{})
	_, observer := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"system_status","data":{
		"component":"slicer","status":"degraded","response_time":1200}}`)

	statuses := observer.framesOfType(t, "system_status")
	require.Len(t, statuses, 1)
	assert.Equal(t, "slicer", statuses[0].Data["component"])
	assert.Equal(t, "degraded", statuses[0].Data["status"])
}

func TestUserNotification(t *testing.T) {
	e := newEnv(t)
	senderConn, senderSock := e.connect(t, ws.Metadata{})
	_, target1 := e.connect(t, ws.Metadata{UserID: "u1"})
	_, target2 := e.connect(t, ws.Metadata{UserID: "u1"})
	_, bystander := e.connect(t, ws.Metadata{UserID: "u2"})

	e.dispatch(senderConn, `{"type":"user_notification","data":{
		"user_id":"u1","title":"Print done","message":"Model ready for pickup"}}`)

	for _, sock := range []*fakeSocket{target1, target2} {
		notes := sock.framesOfType(t, "user_notification")
		require.Len(t, notes, 1)
		assert.Equal(t, "Print done", notes[0].Data["title"])
		assert.Equal(t, "info", notes[0].Data["notification_type"])
		assert.Equal(t, false, notes[0].Data["read"])
		assert.NotEmpty(t, notes[0].Data["notification_id"])
	}
	assert.Empty(t, bystander.framesOfType(t, "user_notification"))

	acks := senderSock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, acks, 1)
	assert.Equal(t, float64(2), acks[0].Data["sent_to"])
}

func TestUserNotificationMissingUser(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"user_notification","data":{"title":"x"}}`)

	frames := sock.framesOfType(t, ws.FrameError)
	require.Len(t, frames, 1)
	assert.Equal(t, "user_id is required", frames[0].Data["message"])
}

func TestBroadcastMessage(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})
	_, observer := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"broadcast_message","data":{
		"message":"maintenance window at 22:00","from":"ops"}}`)

	msgs := observer.framesOfType(t, "broadcast_message")
	require.Len(t, msgs, 1)
	assert.Equal(t, "maintenance window at 22:00", msgs[0].Data["message"])
	assert.Equal(t, "info", msgs[0].Data["message_type"])
	assert.Equal(t, "ops", msgs[0].Data["from"])

	acks := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, acks, 1)
	assert.Equal(t, "Broadcast message sent", acks[0].Data["message"])
}

func TestBroadcastMessageMissingMessage(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"broadcast_message","data":{}}`)

	frames := sock.framesOfType(t, ws.FrameError)
	require.Len(t, frames, 1)
	assert.Equal(t, "message is required", frames[0].Data["message"])
}
