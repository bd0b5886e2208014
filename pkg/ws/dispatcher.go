package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/podprint/realtime/pkg/errors"
)

// Handler 消息处理器：收到连接 ID 与数据负载，绝不接触底层 socket，
// 回复与扇出一律经由 Registry 的公开操作。
type Handler func(ctx context.Context, connID string, data json.RawMessage) error

// Dispatcher 入站帧路由器：按帧 type 查显式注册表分发到处理器。
// 注册表在启动期构建完成，运行期只读。
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	registry *Registry
	log      *zap.Logger
}

// NewDispatcher 创建路由器
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string]Handler),
		registry: registry,
		log:      registry.log,
	}
}

// Register 注册处理器；重复注册同一类型返回 ErrHandlerExists
func (d *Dispatcher) Register(msgType string, h Handler) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.handlers[msgType]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, msgType)
	}
	d.handlers[msgType] = h
	return nil
}

// RegisterAll 批量注册处理器表
func (d *Dispatcher) RegisterAll(table map[string]Handler) error {
	for msgType, h := range table {
		if err := d.Register(msgType, h); err != nil {
			return err
		}
	}
	return nil
}

// Types 已注册消息类型快照
func (d *Dispatcher) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	types := make([]string, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	return types
}

// Dispatch 解析并分发一条入站帧。协议错误（非法 JSON、缺失 type、
// 未注册类型）只回发错误帧，连接保持打开；处理器 panic 在分发边界
// 恢复并转为错误帧，绝不波及其他连接。
func (d *Dispatcher) Dispatch(ctx context.Context, connID string, raw []byte) {
	var frame Frame
	if err := json.Unmarshal(raw, &frame); err != nil {
		d.registry.SendTo(connID, NewErrorFrame(400, "invalid message: not a JSON object"))
		return
	}
	if frame.Type == "" {
		d.registry.SendTo(connID, NewErrorFrame(400, "invalid message: missing 'type' field"))
		return
	}

	d.mu.RLock()
	h, ok := d.handlers[frame.Type]
	d.mu.RUnlock()
	if !ok {
		d.registry.SendTo(connID, NewErrorFrame(404,
			fmt.Sprintf("unsupported message type: %s", frame.Type)))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error("handler panic recovered",
				zap.String("connection_id", connID),
				zap.String("type", frame.Type),
				zap.Any("panic", rec))
			d.registry.SendTo(connID, NewErrorFrame(500, "internal error"))
		}
	}()

	data := frame.Data
	if data == nil {
		data = json.RawMessage("{}")
	}
	if err := h(ctx, connID, data); err != nil {
		d.registry.SendTo(connID, errorFrameFor(err))
		d.log.Debug("handler returned error",
			zap.String("connection_id", connID),
			zap.String("type", frame.Type),
			zap.Error(err))
	}
}

// errorFrameFor 将处理器错误映射为错误帧
func errorFrameFor(err error) *OutFrame {
	var be *errors.Error
	if errors.As(err, &be) {
		return NewErrorFrame(be.Code, be.Message)
	}
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return NewErrorFrame(400, pe.Message)
	}
	return NewErrorFrame(500, err.Error())
}
