package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/podprint/realtime/pkg/cache"
	"github.com/podprint/realtime/pkg/ws"
)

// fakeSocket 测试用 socket，实现 ws.Socket
type fakeSocket struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *fakeSocket) SetWriteDeadline(t time.Time) error { return nil }
func (s *fakeSocket) Close() error                       { return nil }

type decodedFrame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (s *fakeSocket) framesOfType(t *testing.T, typ string) []decodedFrame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []decodedFrame
	for _, raw := range s.frames {
		var f decodedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// env 一套完整的处理器测试环境：注册中心、路由表与内存缓存
type env struct {
	registry   *ws.Registry
	dispatcher *ws.Dispatcher
	store      cache.Cache
	device     *Device
}

func newEnv(t *testing.T) *env {
	t.Helper()
	registry, err := ws.NewRegistry(
		ws.WithHeartbeatInterval(time.Hour),
		ws.WithHeartbeatTimeout(2*time.Hour),
	)
	require.NoError(t, err)

	store := cache.NewMemory()
	t.Cleanup(func() { _ = store.Close() })

	dispatcher := ws.NewDispatcher(registry)
	device := NewDevice(registry, store, nil)
	require.NoError(t, NewGeneral(registry).Register(dispatcher))
	require.NoError(t, device.Register(dispatcher))
	require.NoError(t, NewProject(registry).Register(dispatcher))
	require.NoError(t, NewSystem(registry).Register(dispatcher))

	return &env{
		registry:   registry,
		dispatcher: dispatcher,
		store:      store,
		device:     device,
	}
}

func (e *env) connect(t *testing.T, meta ws.Metadata) (string, *fakeSocket) {
	t.Helper()
	sock := &fakeSocket{}
	id, err := e.registry.Connect(sock, meta)
	require.NoError(t, err)
	return id, sock
}

func (e *env) dispatch(connID, raw string) {
	e.dispatcher.Dispatch(context.Background(), connID, []byte(raw))
}
