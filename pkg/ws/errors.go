package ws

import (
	"errors"
	"fmt"
)

// 错误定义
var (
	// 连接相关错误
	ErrTooManyConnections = errors.New("ws: too many connections")
	ErrConnectionNotFound = errors.New("ws: connection not found")
	ErrConnectionClosed   = errors.New("ws: connection closed")
	ErrRegistryClosed     = errors.New("ws: registry closed")

	// 房间相关错误
	ErrRoomNotFound = errors.New("ws: room not found")
	ErrRoomFull     = errors.New("ws: room is full")

	// 消息相关错误
	ErrHandlerExists    = errors.New("ws: handler already registered")
	ErrHandlerNotFound  = errors.New("ws: handler not found")
	ErrInvalidFrame     = errors.New("ws: invalid frame")
	ErrBroadcastTimeout = errors.New("ws: broadcast timeout")

	// 配置相关错误
	ErrInvalidConfig = errors.New("ws: invalid config")
)

// ProtocolError 协议级错误：由客户端发来的非法或不支持的消息引起，
// 仅回发错误帧给发送方，连接保持打开（可恢复）。
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "ws: protocol error: " + e.Message
}

// NewProtocolError 创建协议错误
func NewProtocolError(format string, args ...any) *ProtocolError {
	return &ProtocolError{Message: fmt.Sprintf(format, args...)}
}
