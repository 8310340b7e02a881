package types

// PeerState 连接记录的生命周期状态
//
// 状态只能前进：negotiating → connected → closed。
type PeerState int

const (
	// PeerStateNegotiating 正在交换 offer/answer/candidate
	PeerStateNegotiating PeerState = iota
	// PeerStateConnected 数据通道已打开
	PeerStateConnected
	// PeerStateClosed 已关闭，记录即将被移除
	PeerStateClosed
)

// String 返回状态名
func (s PeerState) String() string {
	switch s {
	case PeerStateNegotiating:
		return "negotiating"
	case PeerStateConnected:
		return "connected"
	case PeerStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// CanTransitionTo 检查是否允许迁移到目标状态
func (s PeerState) CanTransitionTo(next PeerState) bool {
	return next > s
}
