package relay

import "errors"

var (
	// ErrClosed 中继已关闭
	ErrClosed = errors.New("relay closed")

	// ErrInvalidPayload payload 不是 JSON 文档
	ErrInvalidPayload = errors.New("relay payload is not a JSON document")

	// ErrEmptyAddress 地址为空
	ErrEmptyAddress = errors.New("relay address is empty")
)
