package signaling

import (
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

// Role 本节点在一条连接中的角色
type Role int

const (
	// RoleInitiator 收到 Announce 后发起 Offer
	RoleInitiator Role = iota
	// RoleResponder 收到 Offer 后应答
	RoleResponder
)

// String 返回角色名
func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "responder"
}

// maxEarlyMessages 通道打开回调前最多缓存的消息数
const maxEarlyMessages = 64

// record 一个远端节点的连接记录
type record struct {
	peer    types.PeerID
	replyTo string
	role    Role
	state   types.PeerState
	since   time.Time

	pc interfaces.PeerConnection
	dc interfaces.DataChannel

	// remoteSet 远端描述已应用；之前到达的候选进入 queued
	remoteSet bool
	queued    []webrtc.ICECandidateInit

	// sink 通道打开后的消息入口；打开前到达的消息缓存在 early
	sink  func([]byte)
	early [][]byte

	timeout *eventloop.Timer
}

// PeerInfo 连接记录的诊断快照
type PeerInfo struct {
	ID              types.PeerID
	Role            Role
	State           types.PeerState
	ConnectionState webrtc.PeerConnectionState
	Since           time.Time
	ReplyTo         string
}

func (r *record) info() PeerInfo {
	return PeerInfo{
		ID:              r.peer,
		Role:            r.role,
		State:           r.state,
		ConnectionState: r.pc.ConnectionState(),
		Since:           r.since,
		ReplyTo:         r.replyTo,
	}
}

// addCandidate 应用候选；远端描述未就绪时排队
func (r *record) addCandidate(c webrtc.ICECandidateInit) {
	if !r.remoteSet {
		r.queued = append(r.queued, c)
		return
	}
	if err := r.pc.AddICECandidate(c); err != nil {
		log.Debug("应用候选失败", "peer", r.peer, "err", err)
	}
}

// setRemote 应用远端描述并冲刷排队的候选
func (r *record) setRemote(desc webrtc.SessionDescription) error {
	if err := r.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	r.remoteSet = true
	queued := r.queued
	r.queued = nil
	for _, c := range queued {
		r.addCandidate(c)
	}
	return nil
}

// deliver 把通道消息交给 sink，打开前先缓存
func (r *record) deliver(data []byte) {
	if r.sink != nil {
		r.sink(data)
		return
	}
	if len(r.early) >= maxEarlyMessages {
		return
	}
	r.early = append(r.early, data)
}
