package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podprint/realtime/pkg/ws"
)

func TestSubscribeProject(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"subscribe_project","data":{"project_id":"42"}}`)

	frames := sock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, frames, 1)
	assert.Equal(t, "Subscribed to project 42", frames[0].Data["message"])
	assert.Equal(t, "42", frames[0].Data["project_id"])
	assert.Equal(t, []string{id}, e.registry.Members(ProjectRoom("42")))

	e.dispatch(id, `{"type":"unsubscribe_project","data":{"project_id":"42"}}`)
	assert.Empty(t, e.registry.Members(ProjectRoom("42")))
}

func TestSubscribeProjectMissingID(t *testing.T) {
	e := newEnv(t)
	id, sock := e.connect(t, ws.Metadata{})

	e.dispatch(id, `{"type":"subscribe_project","data":{}}`)

	frames := sock.framesOfType(t, ws.FrameError)
	require.Len(t, frames, 1)
	assert.Equal(t, "project_id is required", frames[0].Data["message"])
}

func TestProjectUpdateFanout(t *testing.T) {
	e := newEnv(t)
	subConn, subSock := e.connect(t, ws.Metadata{})
	pubConn, pubSock := e.connect(t, ws.Metadata{})
	_, outsider := e.connect(t, ws.Metadata{})
	e.dispatch(subConn, `{"type":"subscribe_project","data":{"project_id":"42"}}`)

	e.dispatch(pubConn, `{"type":"project_update","data":{
		"project_id":"42","status":"printing","progress":30.0}}`)

	updates := subSock.framesOfType(t, "project_status_update")
	require.Len(t, updates, 1)
	assert.Equal(t, "42", updates[0].Data["project_id"])
	assert.Equal(t, "printing", updates[0].Data["status"])
	assert.Equal(t, 30.0, updates[0].Data["progress"])
	assert.Empty(t, outsider.framesOfType(t, "project_status_update"))

	acks := pubSock.framesOfType(t, ws.FrameSuccess)
	require.Len(t, acks, 1)
	assert.Equal(t, "Project update sent", acks[0].Data["message"])
}

func TestPrintingProgress(t *testing.T) {
	e := newEnv(t)
	subConn, subSock := e.connect(t, ws.Metadata{})
	pubConn, _ := e.connect(t, ws.Metadata{})
	e.dispatch(subConn, `{"type":"subscribe_project","data":{"project_id":"42"}}`)

	t.Run("percentage derived from layers", func(t *testing.T) {
		e.dispatch(pubConn, `{"type":"printing_progress","data":{
			"project_id":"42","layer_progress":50.0,"total_layers":200.0,"percentage":1.0}}`)

		frames := subSock.framesOfType(t, "printing_progress")
		require.Len(t, frames, 1)
		// 层数优先于客户端上报的百分比
		assert.Equal(t, 25.0, frames[0].Data["percentage"])
		assert.Equal(t, 50.0, frames[0].Data["layer_progress"])
		assert.Equal(t, 200.0, frames[0].Data["total_layers"])
	})

	t.Run("percentage passthrough without layers", func(t *testing.T) {
		e.dispatch(pubConn, `{"type":"printing_progress","data":{
			"project_id":"42","percentage":80.0}}`)

		frames := subSock.framesOfType(t, "printing_progress")
		require.Len(t, frames, 2)
		assert.Equal(t, 80.0, frames[1].Data["percentage"])
	})
}

func TestProjectCompleted(t *testing.T) {
	e := newEnv(t)
	subConn, subSock := e.connect(t, ws.Metadata{})
	pubConn, _ := e.connect(t, ws.Metadata{})
	e.dispatch(subConn, `{"type":"subscribe_project","data":{"project_id":"42"}}`)

	e.dispatch(pubConn, `{"type":"project_completed","data":{
		"project_id":"42","download_url":"https://files.example.com/42.stl"}}`)

	frames := subSock.framesOfType(t, "project_completed")
	require.Len(t, frames, 1)
	assert.Equal(t, "completed", frames[0].Data["status"])
	assert.Equal(t, "https://files.example.com/42.stl", frames[0].Data["download_url"])
	assert.NotEmpty(t, frames[0].Data["completed_at"])
}

func TestProjectError(t *testing.T) {
	e := newEnv(t)
	subConn, subSock := e.connect(t, ws.Metadata{})
	pubConn, _ := e.connect(t, ws.Metadata{})
	e.dispatch(subConn, `{"type":"subscribe_project","data":{"project_id":"42"}}`)

	e.dispatch(pubConn, `{"type":"project_error","data":{
		"project_id":"42","error_type":"filament_jam","error_message":"extruder blocked"}}`)

	frames := subSock.framesOfType(t, "project_error")
	require.Len(t, frames, 1)
	assert.Equal(t, "filament_jam", frames[0].Data["error_type"])
	assert.Equal(t, "extruder blocked", frames[0].Data["error_message"])
}
