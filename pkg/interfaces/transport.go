package interfaces

import "github.com/pion/webrtc/v4"

// TransportFactory 创建点对点连接
type TransportFactory interface {
	// NewPeerConnection 使用给定 ICE 服务器创建连接
	NewPeerConnection(servers []webrtc.ICEServer) (PeerConnection, error)
}

// PeerConnection 一个对端的连接协商句柄
//
// 回调可能在任意 goroutine 上触发，使用方负责把它们转交到自己的事件循环。
type PeerConnection interface {
	CreateDataChannel(label string) (DataChannel, error)
	CreateOffer() (webrtc.SessionDescription, error)
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error

	// OnICECandidate 本地收集到候选时回调，nil 表示收集结束
	OnICECandidate(fn func(*webrtc.ICECandidateInit))
	OnConnectionStateChange(fn func(webrtc.PeerConnectionState))
	// OnDataChannel 对端创建的数据通道到达时回调
	OnDataChannel(fn func(DataChannel))

	ConnectionState() webrtc.PeerConnectionState
	Close() error
}

// DataChannel 可靠有序的数据通道
type DataChannel interface {
	Label() string
	ReadyState() webrtc.DataChannelState

	OnOpen(fn func())
	OnClose(fn func())
	OnError(fn func(error))
	OnMessage(fn func([]byte))

	SendText(s string) error
	Close() error
}
