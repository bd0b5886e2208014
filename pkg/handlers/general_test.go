package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podprint/realtime/pkg/ws"
)

func TestPing(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"ping","data":{"timestamp":"2026-01-01T00:00:00Z"}}`)

	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 1)
	assert.Equal(t, "pong", frames[0].Data["message"])
	assert.Equal(t, "2026-01-01T00:00:00Z", frames[0].Data["timestamp"])
}

func TestJoinLeaveRoomMessages(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"join_room","data":{"room_name":"lobby"}}`)
	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 1)
	assert.Equal(t, "Joined room: lobby", frames[0].Data["message"])
	assert.Equal(t, []string{id}, e.registry.Members("lobby"))

	e.dispatch(id, `{"type":"leave_room","data":{"room_name":"lobby"}}`)
	frames = sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 2)
	assert.Equal(t, "Left room: lobby", frames[1].Data["message"])
	assert.Empty(t, e.registry.Members("lobby"))
}

func TestJoinRoomMissingName(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"join_room","data":{}}`)

	frames := sock.framesOfType(t, ws.FrameError)
	require.Len(t, frames, 1)
	assert.Equal(t, "room_name is required", frames[0].Data["message"])
	assert.Equal(t, float64(400), frames[0].Data["code"])
	assert.True(t, e.registry.Exists(id))
}

func TestGetConnectionInfo(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{UserID: "u1", DeviceID: "d1"})
	require.NoError(t, e.registry.JoinRoom(id, "lobby"))

	e.dispatch(id, `{"type":"get_connection_info","data":{}}`)

	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 1)
	assert.Equal(t, "Connection info", frames[0].Data["message"])
	assert.Equal(t, id, frames[0].Data["connection_id"])
	assert.Equal(t, "u1", frames[0].Data["user_id"])
	assert.Equal(t, "d1", frames[0].Data["device_id"])
	assert.Contains(t, frames[0].Data["rooms"], "lobby")
}

func TestGetStats(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{UserID: "u1"})
	e.connect(t, ws.Metadata{UserID: "u2"})

	e.dispatch(id, `{"type":"get_stats","data":{}}`)

	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 1)
	assert.Equal(t, "Server stats", frames[0].Data["message"])
	assert.Equal(t, float64(2), frames[0].Data["active_connections"])
	assert.Equal(t, float64(2), frames[0].Data["connected_users"])
}

func TestSubscribeUnsubscribeDevice(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"subscribe_device","data":{"device_id":"printer-1"}}`)
	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 1)
	assert.Equal(t, "Subscribed to device printer-1", frames[0].Data["message"])
	assert.Equal(t, []string{id}, e.registry.Members(DeviceRoom("printer-1")))

	e.dispatch(id, `{"type":"unsubscribe_device","data":{"device_id":"printer-1"}}`)
	assert.Empty(t, e.registry.Members(DeviceRoom("printer-1")))
}
