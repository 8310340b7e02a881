package coedit

import "errors"

// 公共错误定义
var (
	// ErrSessionClosed 会话已关闭
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidColor 颜色不是 #rrggbb
	ErrInvalidColor = errors.New("invalid color, want #rrggbb")

	// ErrNoRoom 未指定房间
	ErrNoRoom = errors.New("room is required")
)
