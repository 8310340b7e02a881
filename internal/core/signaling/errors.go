package signaling

import "errors"

var (
	// ErrMalformedMessage 信令消息无法解析或字段不合法
	ErrMalformedMessage = errors.New("malformed signaling message")

	// ErrEngineClosed 引擎已关闭
	ErrEngineClosed = errors.New("signaling engine closed")

	// ErrAlreadyStarted 引擎已启动
	ErrAlreadyStarted = errors.New("signaling engine already started")
)
