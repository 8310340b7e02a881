package types

import "time"

// ============================================================================
//                              Event - 事件接口
// ============================================================================

// Event 基础事件接口
type Event interface {
	// Type 返回事件类型
	Type() string

	// Timestamp 返回事件时间戳
	Timestamp() time.Time
}

// BaseEvent 基础事件实现
type BaseEvent struct {
	EventType string
	Time      time.Time
}

// Type 返回事件类型
func (e BaseEvent) Type() string {
	return e.EventType
}

// Timestamp 返回事件时间戳
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// NewBaseEvent 创建基础事件
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
	}
}

// ============================================================================
//                              节点事件
// ============================================================================

// 事件类型常量
const (
	EventTypePeerConnected    = "peer.connected"
	EventTypePeerDisconnected = "peer.disconnected"
	EventTypeFatal            = "session.fatal"
)

// EvtPeerConnected 对端数据通道已打开
type EvtPeerConnected struct {
	BaseEvent
	Peer PeerID
}

// EvtPeerDisconnected 对端连接已关闭
type EvtPeerDisconnected struct {
	BaseEvent
	Peer PeerID
	// Reason 关闭原因（连接状态名或通道错误）
	Reason string
}

// EvtFatal 本地不可恢复错误（如文档 delta 协议违例）
type EvtFatal struct {
	BaseEvent
	Err error
}
