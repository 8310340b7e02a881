package webrtc

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/dep2p/go-coedit/pkg/interfaces"
)

// Option 调整 SettingEngine
type Option func(*webrtc.SettingEngine)

// WithLoopback 允许回环候选（同机测试用）
func WithLoopback() Option {
	return func(se *webrtc.SettingEngine) {
		se.SetIncludeLoopbackCandidate(true)
		se.SetNetworkTypes([]webrtc.NetworkType{webrtc.NetworkTypeUDP4})
	}
}

// Factory pion 连接工厂
type Factory struct {
	api *webrtc.API
}

var _ interfaces.TransportFactory = (*Factory)(nil)

// NewFactory 创建连接工厂
func NewFactory(opts ...Option) *Factory {
	se := webrtc.SettingEngine{LoggerFactory: loggerFactory{}}
	for _, opt := range opts {
		opt(&se)
	}
	return &Factory{api: webrtc.NewAPI(webrtc.WithSettingEngine(se))}
}

// NewPeerConnection 创建连接
func (f *Factory) NewPeerConnection(servers []webrtc.ICEServer) (interfaces.PeerConnection, error) {
	pc, err := f.api.NewPeerConnection(webrtc.Configuration{ICEServers: servers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return &peerConnection{pc: pc}, nil
}

// ============================================================================
//                              PeerConnection
// ============================================================================

type peerConnection struct {
	pc *webrtc.PeerConnection
}

func (p *peerConnection) CreateDataChannel(label string) (interfaces.DataChannel, error) {
	dc, err := p.pc.CreateDataChannel(label, nil)
	if err != nil {
		return nil, err
	}
	return &dataChannel{dc: dc}, nil
}

func (p *peerConnection) CreateOffer() (webrtc.SessionDescription, error) {
	return p.pc.CreateOffer(nil)
}

func (p *peerConnection) CreateAnswer() (webrtc.SessionDescription, error) {
	return p.pc.CreateAnswer(nil)
}

func (p *peerConnection) SetLocalDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetLocalDescription(desc)
}

func (p *peerConnection) SetRemoteDescription(desc webrtc.SessionDescription) error {
	return p.pc.SetRemoteDescription(desc)
}

func (p *peerConnection) AddICECandidate(c webrtc.ICECandidateInit) error {
	return p.pc.AddICECandidate(c)
}

func (p *peerConnection) OnICECandidate(fn func(*webrtc.ICECandidateInit)) {
	p.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			fn(nil)
			return
		}
		cand := c.ToJSON()
		fn(&cand)
	})
}

func (p *peerConnection) OnConnectionStateChange(fn func(webrtc.PeerConnectionState)) {
	p.pc.OnConnectionStateChange(fn)
}

func (p *peerConnection) OnDataChannel(fn func(interfaces.DataChannel)) {
	p.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		fn(&dataChannel{dc: dc})
	})
}

func (p *peerConnection) ConnectionState() webrtc.PeerConnectionState {
	return p.pc.ConnectionState()
}

func (p *peerConnection) Close() error {
	return p.pc.Close()
}

// ============================================================================
//                              DataChannel
// ============================================================================

type dataChannel struct {
	dc *webrtc.DataChannel
}

func (d *dataChannel) Label() string { return d.dc.Label() }
func (d *dataChannel) ReadyState() webrtc.DataChannelState { return d.dc.ReadyState() }
func (d *dataChannel) OnOpen(fn func()) { d.dc.OnOpen(fn) }
func (d *dataChannel) OnClose(fn func()) { d.dc.OnClose(fn) }
func (d *dataChannel) OnError(fn func(error)) { d.dc.OnError(fn) }
func (d *dataChannel) SendText(s string) error { return d.dc.SendText(s) }
func (d *dataChannel) Close() error { return d.dc.Close() }

func (d *dataChannel) OnMessage(fn func([]byte)) {
	d.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		fn(msg.Data)
	})
}
