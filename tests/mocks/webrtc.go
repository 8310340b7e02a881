package mocks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dep2p/go-coedit/pkg/interfaces"
)

const (
	offerPrefix  = "mock-offer:"
	answerPrefix = "mock-answer:"
)

var (
	// ErrNoRemoteDescription 远端描述尚未设置
	ErrNoRemoteDescription = errors.New("mock: remote description not set")
	// ErrUnknownDescription SDP 无法在网络中找到对应连接
	ErrUnknownDescription = errors.New("mock: unknown session description")
	// ErrConnectionClosed 连接已关闭
	ErrConnectionClosed = errors.New("mock: connection closed")
	// ErrChannelNotOpen 数据通道未打开
	ErrChannelNotOpen = errors.New("mock: data channel not open")
)

// ============================================================================
//                              Network
// ============================================================================

// Network 进程内假 WebRTC 网络
//
// CreateOffer 产生 "mock-offer:<id>"，应答方据此找到发起方；
// 发起方应用 "mock-answer:<id>" 后双方进入 connected，发起方创建的
// 数据通道在应答方出现并同时打开。
type Network struct {
	mu    sync.Mutex
	conns map[int]*MockPeerConnection
	next  int

	// RequireCandidates 为 true 时，双方都至少应用一个候选后才连通
	RequireCandidates bool
}

// NewNetwork 创建假网络
func NewNetwork() *Network {
	return &Network{conns: make(map[int]*MockPeerConnection)}
}

// Transport 创建一个节点使用的传输工厂
func (n *Network) Transport(owner string) *MockTransport {
	return &MockTransport{Owner: owner, network: n}
}

func (n *Network) register(pc *MockPeerConnection) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.next++
	pc.id = n.next
	n.conns[pc.id] = pc
}

func (n *Network) lookup(sdp, prefix string) (*MockPeerConnection, error) {
	if !strings.HasPrefix(sdp, prefix) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescription, sdp)
	}
	id, err := strconv.Atoi(strings.TrimPrefix(sdp, prefix))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescription, sdp)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	pc, ok := n.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDescription, sdp)
	}
	return pc, nil
}

// Connections 返回网络中创建过的全部连接
func (n *Network) Connections() []*MockPeerConnection {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*MockPeerConnection, 0, len(n.conns))
	for i := 1; i <= n.next; i++ {
		if pc, ok := n.conns[i]; ok {
			out = append(out, pc)
		}
	}
	return out
}

// ============================================================================
//                              MockTransport
// ============================================================================

// MockTransport 模拟 interfaces.TransportFactory
type MockTransport struct {
	Owner   string
	network *Network

	// 可覆盖的方法
	NewPeerConnectionFunc func(servers []webrtc.ICEServer) (interfaces.PeerConnection, error)

	mu sync.Mutex
	// 调用记录
	Created []*MockPeerConnection
}

// NewPeerConnection 创建假连接
func (t *MockTransport) NewPeerConnection(servers []webrtc.ICEServer) (interfaces.PeerConnection, error) {
	if t.NewPeerConnectionFunc != nil {
		return t.NewPeerConnectionFunc(servers)
	}
	pc := &MockPeerConnection{
		Owner:   t.Owner,
		Servers: servers,
		network: t.network,
		state:   webrtc.PeerConnectionStateNew,
	}
	if t.network != nil {
		t.network.register(pc)
	}
	t.mu.Lock()
	t.Created = append(t.Created, pc)
	t.mu.Unlock()
	return pc, nil
}

// Connections 返回该工厂创建的连接
func (t *MockTransport) Connections() []*MockPeerConnection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]*MockPeerConnection(nil), t.Created...)
}

// ============================================================================
//                              MockPeerConnection
// ============================================================================

// MockPeerConnection 模拟 interfaces.PeerConnection
type MockPeerConnection struct {
	Owner   string
	Servers []webrtc.ICEServer

	network *Network
	id      int

	mu        sync.Mutex
	state     webrtc.PeerConnectionState
	local     *webrtc.SessionDescription
	remote    *webrtc.SessionDescription
	peer      *MockPeerConnection
	channels  []*MockDataChannel
	connected bool

	onICE         func(*webrtc.ICECandidateInit)
	onState       func(webrtc.PeerConnectionState)
	onDataChannel func(interfaces.DataChannel)

	// 可覆盖的方法
	SetRemoteDescriptionFunc func(desc webrtc.SessionDescription) error
	AddICECandidateFunc      func(c webrtc.ICECandidateInit) error

	// 调用记录
	Candidates []webrtc.ICECandidateInit
	CloseCalls int
}

// ID 返回网络内编号
func (p *MockPeerConnection) ID() int {
	return p.id
}

// CreateDataChannel 创建本端数据通道，连通后在对端出现
func (p *MockPeerConnection) CreateDataChannel(label string) (interfaces.DataChannel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == webrtc.PeerConnectionStateClosed {
		return nil, ErrConnectionClosed
	}
	dc := newMockDataChannel(label)
	p.channels = append(p.channels, dc)
	return dc, nil
}

// CreateOffer 返回 "mock-offer:<id>"
func (p *MockPeerConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerPrefix + strconv.Itoa(p.id)}, nil
}

// CreateAnswer 返回 "mock-answer:<id>"，需先设置远端 offer
func (p *MockPeerConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return webrtc.SessionDescription{}, ErrNoRemoteDescription
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answerPrefix + strconv.Itoa(p.id)}, nil
}

// SetLocalDescription 保存本端描述并异步产生一个候选
func (p *MockPeerConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	p.mu.Lock()
	if p.state == webrtc.PeerConnectionStateClosed {
		p.mu.Unlock()
		return ErrConnectionClosed
	}
	d := desc
	p.local = &d
	onICE := p.onICE
	p.mu.Unlock()

	if onICE != nil {
		cand := webrtc.ICECandidateInit{Candidate: fmt.Sprintf("candidate:mock %d", p.id)}
		go func() {
			onICE(&cand)
			onICE(nil)
		}()
	}
	return nil
}

// SetRemoteDescription 按 SDP 找到对端；应用 answer 后尝试连通
func (p *MockPeerConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	if p.SetRemoteDescriptionFunc != nil {
		if err := p.SetRemoteDescriptionFunc(desc); err != nil {
			return err
		}
	}
	prefix := offerPrefix
	if desc.Type == webrtc.SDPTypeAnswer {
		prefix = answerPrefix
	}
	peer, err := p.network.lookup(desc.SDP, prefix)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.state == webrtc.PeerConnectionStateClosed {
		p.mu.Unlock()
		return ErrConnectionClosed
	}
	d := desc
	p.remote = &d
	p.peer = peer
	p.mu.Unlock()

	if desc.Type == webrtc.SDPTypeAnswer {
		peer.mu.Lock()
		peer.peer = p
		peer.mu.Unlock()
		p.tryConnect()
	}
	return nil
}

// AddICECandidate 记录候选；远端描述未设置时报错（与 pion 一致）
func (p *MockPeerConnection) AddICECandidate(c webrtc.ICECandidateInit) error {
	if p.AddICECandidateFunc != nil {
		return p.AddICECandidateFunc(c)
	}
	p.mu.Lock()
	if p.remote == nil {
		p.mu.Unlock()
		return ErrNoRemoteDescription
	}
	p.Candidates = append(p.Candidates, c)
	peer := p.peer
	p.mu.Unlock()

	if peer != nil {
		if peer.isOfferer() {
			peer.tryConnect()
		} else {
			p.tryConnect()
		}
	}
	return nil
}

// AppliedCandidates 返回已应用的候选
func (p *MockPeerConnection) AppliedCandidates() []webrtc.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), p.Candidates...)
}

// OnICECandidate 注册候选回调
func (p *MockPeerConnection) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onICE = fn
}

// OnConnectionStateChange 注册状态回调
func (p *MockPeerConnection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onState = fn
}

// OnDataChannel 注册远端通道回调
func (p *MockPeerConnection) OnDataChannel(fn func(interfaces.DataChannel)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDataChannel = fn
}

// ConnectionState 返回连接状态
func (p *MockPeerConnection) ConnectionState() webrtc.PeerConnectionState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState 模拟传输层状态变化（如 failed）
func (p *MockPeerConnection) SetState(s webrtc.PeerConnectionState) {
	p.mu.Lock()
	p.state = s
	fn := p.onState
	p.mu.Unlock()
	if fn != nil {
		go fn(s)
	}
}

// Close 关闭连接及其全部数据通道
func (p *MockPeerConnection) Close() error {
	p.mu.Lock()
	p.CloseCalls++
	if p.state == webrtc.PeerConnectionStateClosed {
		p.mu.Unlock()
		return nil
	}
	channels := append([]*MockDataChannel(nil), p.channels...)
	p.mu.Unlock()

	for _, dc := range channels {
		_ = dc.Close()
	}
	p.SetState(webrtc.PeerConnectionStateClosed)
	return nil
}

func (p *MockPeerConnection) isOfferer() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local != nil && p.local.Type == webrtc.SDPTypeOffer
}

// ready 判断本端满足连通条件
func (p *MockPeerConnection) ready(requireCandidates bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == webrtc.PeerConnectionStateClosed || p.connected {
		return false
	}
	if p.local == nil || p.remote == nil {
		return false
	}
	return !requireCandidates || len(p.Candidates) > 0
}

// tryConnect 由发起方调用：双方就绪后成对打开数据通道
func (p *MockPeerConnection) tryConnect() {
	p.mu.Lock()
	peer := p.peer
	p.mu.Unlock()
	if peer == nil || p.network == nil {
		return
	}
	require := p.network.RequireCandidates
	if !p.ready(require) || !peer.ready(require) {
		return
	}

	p.mu.Lock()
	if p.connected {
		p.mu.Unlock()
		return
	}
	p.connected = true
	p.state = webrtc.PeerConnectionStateConnected
	channels := append([]*MockDataChannel(nil), p.channels...)
	onState := p.onState
	p.mu.Unlock()

	peer.mu.Lock()
	peer.connected = true
	peer.state = webrtc.PeerConnectionStateConnected
	peerOnState := peer.onState
	onDataChannel := peer.onDataChannel
	peer.mu.Unlock()

	go func() {
		if onState != nil {
			onState(webrtc.PeerConnectionStateConnected)
		}
		if peerOnState != nil {
			peerOnState(webrtc.PeerConnectionStateConnected)
		}
		for _, local := range channels {
			remote := newMockDataChannel(local.label)
			local.pair(remote)
			peer.mu.Lock()
			peer.channels = append(peer.channels, remote)
			peer.mu.Unlock()
			if onDataChannel != nil {
				onDataChannel(remote)
			}
			local.open()
			remote.open()
		}
	}()
}

// ============================================================================
//                              MockDataChannel
// ============================================================================

// MockDataChannel 模拟 interfaces.DataChannel
//
// SendText 同步调用对端的消息回调，因此同一通道内消息有序。
type MockDataChannel struct {
	label string

	mu        sync.Mutex
	state     webrtc.DataChannelState
	peer      *MockDataChannel
	onOpen    func()
	onClose   func()
	onError   func(error)
	onMessage func([]byte)

	// 可覆盖的方法
	SendTextFunc func(s string) error

	// 调用记录
	Sent []string
}

func newMockDataChannel(label string) *MockDataChannel {
	return &MockDataChannel{label: label, state: webrtc.DataChannelStateConnecting}
}

// NewMockDataChannelPair 创建一对已打开的数据通道
func NewMockDataChannelPair(label string) (*MockDataChannel, *MockDataChannel) {
	a, b := newMockDataChannel(label), newMockDataChannel(label)
	a.pair(b)
	a.state = webrtc.DataChannelStateOpen
	b.state = webrtc.DataChannelStateOpen
	return a, b
}

func (d *MockDataChannel) pair(o *MockDataChannel) {
	d.mu.Lock()
	d.peer = o
	d.mu.Unlock()
	o.mu.Lock()
	o.peer = d
	o.mu.Unlock()
}

// open 进入 open 并触发回调
func (d *MockDataChannel) open() {
	d.mu.Lock()
	if d.state != webrtc.DataChannelStateConnecting {
		d.mu.Unlock()
		return
	}
	d.state = webrtc.DataChannelStateOpen
	fn := d.onOpen
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Label 返回通道名
func (d *MockDataChannel) Label() string {
	return d.label
}

// ReadyState 返回通道状态
func (d *MockDataChannel) ReadyState() webrtc.DataChannelState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// OnOpen 注册打开回调
func (d *MockDataChannel) OnOpen(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onOpen = fn
}

// OnClose 注册关闭回调
func (d *MockDataChannel) OnClose(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onClose = fn
}

// OnError 注册错误回调
func (d *MockDataChannel) OnError(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onError = fn
}

// OnMessage 注册消息回调
func (d *MockDataChannel) OnMessage(fn func([]byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onMessage = fn
}

// SendText 发送文本帧
func (d *MockDataChannel) SendText(s string) error {
	if d.SendTextFunc != nil {
		return d.SendTextFunc(s)
	}
	d.mu.Lock()
	if d.state != webrtc.DataChannelStateOpen {
		d.mu.Unlock()
		return ErrChannelNotOpen
	}
	d.Sent = append(d.Sent, s)
	peer := d.peer
	d.mu.Unlock()

	if peer != nil {
		peer.mu.Lock()
		fn := peer.onMessage
		open := peer.state == webrtc.DataChannelStateOpen
		peer.mu.Unlock()
		if fn != nil && open {
			fn([]byte(s))
		}
	}
	return nil
}

// SentFrames 返回已发送的帧
func (d *MockDataChannel) SentFrames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.Sent...)
}

// Close 关闭本端与对端
func (d *MockDataChannel) Close() error {
	if !d.closeLocal() {
		return nil
	}
	d.mu.Lock()
	peer := d.peer
	d.mu.Unlock()
	if peer != nil {
		peer.closeLocal()
	}
	return nil
}

func (d *MockDataChannel) closeLocal() bool {
	d.mu.Lock()
	if d.state == webrtc.DataChannelStateClosed {
		d.mu.Unlock()
		return false
	}
	d.state = webrtc.DataChannelStateClosed
	fn := d.onClose
	d.mu.Unlock()
	if fn != nil {
		go fn()
	}
	return true
}

// Fail 模拟通道错误
func (d *MockDataChannel) Fail(err error) {
	d.mu.Lock()
	fn := d.onError
	d.mu.Unlock()
	if fn != nil {
		go fn(err)
	}
}
