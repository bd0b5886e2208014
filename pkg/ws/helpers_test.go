package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeSocket 测试用 socket，记录全部出站帧，可切换写失败
type fakeSocket struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func (s *fakeSocket) WriteMessage(messageType int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("write refused")
	}
	if s.closed {
		return errors.New("socket closed")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	s.frames = append(s.frames, cp)
	return nil
}

func (s *fakeSocket) SetWriteDeadline(t time.Time) error { return nil }

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSocket) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSocket) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// decodedFrame 解码后的出站帧
type decodedFrame struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
}

func (s *fakeSocket) decoded(t *testing.T) []decodedFrame {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	frames := make([]decodedFrame, 0, len(s.frames))
	for _, raw := range s.frames {
		var f decodedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		frames = append(frames, f)
	}
	return frames
}

// framesOfType 按类型筛选已解码帧
func (s *fakeSocket) framesOfType(t *testing.T, typ string) []decodedFrame {
	t.Helper()
	var out []decodedFrame
	for _, f := range s.decoded(t) {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// newTestRegistry 创建测试注册中心，心跳间隔拉长避免干扰用例
func newTestRegistry(t *testing.T, opts ...Option) *Registry {
	t.Helper()
	base := []Option{
		WithHeartbeatInterval(time.Hour),
		WithHeartbeatTimeout(2 * time.Hour),
	}
	r, err := NewRegistry(append(base, opts...)...)
	require.NoError(t, err)
	return r
}

// connect 建立一条 fake 连接
func connect(t *testing.T, r *Registry, meta Metadata) (string, *fakeSocket) {
	t.Helper()
	sock := &fakeSocket{}
	id, err := r.Connect(sock, meta)
	require.NoError(t, err)
	return id, sock
}
