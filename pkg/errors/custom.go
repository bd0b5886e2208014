package errors

import "fmt"

/*
	内置常用错误码
*/

var (
	// ErrServer 服务器内部错误
	ErrServer = New(500, "internal server error")
	// ErrBadRequest 请求数据非法
	ErrBadRequest = New(400, "bad request")
	// ErrNotFound 资源不存在
	ErrNotFound = New(404, "not found")
	// ErrUnsupported 不支持的消息类型
	ErrUnsupported = New(404, "unsupported message type")
)

// MissingField 构造"缺少必填字段"错误
func MissingField(name string) *Error {
	return ErrBadRequest.WithMessage(fmt.Sprintf("%s is required", name))
}
