package channel

import (
	"errors"
	"time"

	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

var log = logger.Logger("channel")

// Config 通道配置
type Config struct {
	// HeartbeatMin/HeartbeatMax sync 帧的随机间隔
	HeartbeatMin time.Duration
	HeartbeatMax time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		HeartbeatMin: 5 * time.Second,
		HeartbeatMax: 15 * time.Second,
	}
}

// Manager 管理全部已打开的通道
//
// 所有方法都在事件循环上调用，Channels 除外。
type Manager struct {
	cfg      Config
	loop     *eventloop.Loop
	doc      *document.Doc
	presence *presence.Store
	metrics  *metrics.Metrics

	// OnError 应用更新时观察者返回的非解码错误（如 delta 协议违例）
	onError func(error)

	channels map[types.PeerID]*Channel
	unsubs   []func()
	closed   bool
}

// Option 选项
type Option func(*Manager)

// WithMetrics 设置指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// WithErrorHandler 设置致命错误回调
func WithErrorHandler(fn func(error)) Option {
	return func(mgr *Manager) {
		mgr.onError = fn
	}
}

// NewManager 创建通道管理器并订阅本地文档与在线状态变更
//
// 需要在事件循环上调用，或在事件循环开始处理文档事件之前调用。
func NewManager(cfg Config, loop *eventloop.Loop, doc *document.Doc, store *presence.Store, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.HeartbeatMin <= 0 {
		cfg.HeartbeatMin = def.HeartbeatMin
	}
	if cfg.HeartbeatMax < cfg.HeartbeatMin {
		cfg.HeartbeatMax = cfg.HeartbeatMin
	}
	m := &Manager{
		cfg:      cfg,
		loop:     loop,
		doc:      doc,
		presence: store,
		channels: make(map[types.PeerID]*Channel),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.unsubs = append(m.unsubs,
		doc.OnUpdate(m.onDocUpdate),
		store.OnUpdate(m.onPresenceUpdate),
	)
	return m
}

// onDocUpdate 广播非 remote 来源的文档变更
func (m *Manager) onDocUpdate(update []byte, origin types.Origin) {
	m.metrics.DocTransaction(origin.String())
	if origin == types.OriginRemote {
		return
	}
	m.Broadcast(UpdateFrame{Update: update})
}

// onPresenceUpdate 只广播本节点自己的条目
func (m *Manager) onPresenceUpdate(ch presence.Change) {
	if ch.Origin != types.OriginLocal {
		return
	}
	m.Broadcast(AwarenessFrame{Update: m.presence.EncodeUpdate([]document.ClientID{m.presence.ClientID()})})
}

// OnChannelOpen 接管已打开的数据通道，返回其消息入口
func (m *Manager) OnChannelOpen(peer types.PeerID, dc interfaces.DataChannel) func([]byte) {
	return m.Attach(peer, dc).HandleMessage
}

// OnPeerClosed 对端连接关闭
func (m *Manager) OnPeerClosed(peer types.PeerID, reason string) {
	if ch, ok := m.channels[peer]; ok {
		ch.Close(reason)
	}
}

// Attach 接管数据通道并开始同步心跳
//
// 同一对端已有通道时先关闭旧通道。
func (m *Manager) Attach(peer types.PeerID, dc interfaces.DataChannel) *Channel {
	if old, ok := m.channels[peer]; ok {
		old.Close("replaced")
	}
	ch := &Channel{
		mgr:      m,
		peer:     peer,
		dc:       dc,
		openedAt: m.loop.Clock().Now(),
	}
	if m.closed {
		ch.closed = true
		return ch
	}
	m.channels[peer] = ch
	log.Debug("通道已接管", "peer", peer, "label", dc.Label())
	ch.heartbeat()
	return ch
}

// Get 返回对端的通道
func (m *Manager) Get(peer types.PeerID) (*Channel, bool) {
	ch, ok := m.channels[peer]
	return ch, ok
}

// Len 返回通道数
func (m *Manager) Len() int {
	return len(m.channels)
}

// Broadcast 向全部通道发送一帧
func (m *Manager) Broadcast(f Frame) {
	for _, ch := range m.channels {
		ch.Send(f)
	}
}

// Channels 返回诊断快照，不能在事件循环上调用
func (m *Manager) Channels() []Info {
	var out []Info
	_ = m.loop.Do(func() {
		out = m.ChannelsLocked()
	})
	return out
}

// ChannelsLocked 在事件循环上返回诊断快照
func (m *Manager) ChannelsLocked() []Info {
	out := make([]Info, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch.info())
	}
	return out
}

// Close 取消订阅并关闭全部通道
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	for _, unsub := range m.unsubs {
		unsub()
	}
	m.unsubs = nil
	for _, ch := range m.channels {
		ch.Close("manager closed")
	}
}

// fail 上报非解码错误
func (m *Manager) fail(peer types.PeerID, err error) {
	log.Error("应用远端更新失败", "peer", peer, "err", err)
	if m.onError != nil {
		m.onError(err)
	}
}

// isDecodeError 判断错误是否只是坏帧
func isDecodeError(err error) bool {
	return errors.Is(err, document.ErrMalformedUpdate) || errors.Is(err, presence.ErrMalformedUpdate)
}
