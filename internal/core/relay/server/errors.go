package server

import "errors"

var (
	// ErrTooManyConnections 总连接数超限
	ErrTooManyConnections = errors.New("too many relay connections")

	// ErrTooManyClientConnections 单个客户端连接数超限
	ErrTooManyClientConnections = errors.New("too many connections from client")

	// ErrRateLimited 发布频率超限
	ErrRateLimited = errors.New("publish rate limited")
)
