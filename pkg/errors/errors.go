package errors

import "errors"

// Error 业务错误：code 随错误帧回发给客户端
type Error struct {
	Code    int    `json:"code"`    // 错误码
	Message string `json:"message"` // 错误信息
	Err     error  `json:"-"`       // 原始错误
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return e.Message
}

// Unwrap 实现 errors.Unwrap 接口
func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建新的错误
func New(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithError 添加原始错误（返回新实例，不修改原错误）
func (e *Error) WithError(err error) *Error {
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// WithMessage 替换错误信息（返回新实例，不修改原错误）
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// Is 当 target 也是 *Error 时比较 Code 是否相同
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Err, target)
}

// As 转换为指定类型的错误
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is 检查错误是否为指定类型
func Is(err error, target error) bool {
	return errors.Is(err, target)
}
