package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "coedit"

// 信令消息处理结果
const (
	ResultHandled   = "handled"
	ResultSelf      = "self"
	ResultDuplicate = "duplicate"
	ResultMalformed = "malformed"
	ResultBuffered  = "buffered"
	ResultUnmatched = "unmatched"
)

// Metrics 会话指标
type Metrics struct {
	registry *prometheus.Registry

	signaling   *prometheus.CounterVec
	peers       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	pendingICE  *prometheus.CounterVec
	frames      *prometheus.CounterVec
	frameBytes  *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	docUpdates  *prometheus.CounterVec
	relay       *prometheus.CounterVec
	fatal       prometheus.Counter
}

// New 创建指标并注册到新的 Registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		signaling: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "messages_total",
			Help: "收到的信令消息数",
		}, []string{"kind", "result"}),
		peers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "peers",
			Help: "各状态的连接记录数",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "transitions_total",
			Help: "连接记录状态迁移次数",
		}, []string{"state"}),
		pendingICE: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "pending_candidates_total",
			Help: "暂存 ICE 候选的处理结果",
		}, []string{"result"}),
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "channel", Name: "frames_total",
			Help: "数据通道帧数",
		}, []string{"direction", "type"}),
		frameBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "channel", Name: "bytes_total",
			Help: "数据通道字节数",
		}, []string{"direction"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "channel", Name: "dropped_frames_total",
			Help: "被丢弃的帧数",
		}, []string{"reason"}),
		docUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "document", Name: "transactions_total",
			Help: "产生变更的文档事务数",
		}, []string{"origin"}),
		relay: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "relay", Name: "publish_total",
			Help: "中继发布结果",
		}, []string{"result"}),
		fatal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fatal_errors_total",
			Help: "致命错误（协议违规）次数",
		}),
	}
	m.registry.MustRegister(
		m.signaling, m.peers, m.transitions, m.pendingICE,
		m.frames, m.frameBytes, m.dropped, m.docUpdates, m.relay, m.fatal,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry 返回指标 Registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SignalingMessage 记录一条信令消息
func (m *Metrics) SignalingMessage(kind, result string) {
	if m == nil {
		return
	}
	m.signaling.WithLabelValues(kind, result).Inc()
}

// PeerState 记录状态迁移，from 为空表示新建，to 为空表示移除
func (m *Metrics) PeerState(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.peers.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.peers.WithLabelValues(to).Inc()
		m.transitions.WithLabelValues(to).Inc()
	}
}

// PendingCandidate 记录暂存候选结果（buffered / flushed / expired）
func (m *Metrics) PendingCandidate(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pendingICE.WithLabelValues(result).Add(float64(n))
}

// Frame 记录一帧
func (m *Metrics) Frame(direction, typ string, size int) {
	if m == nil {
		return
	}
	m.frames.WithLabelValues(direction, typ).Inc()
	m.frameBytes.WithLabelValues(direction).Add(float64(size))
}

// FrameDropped 记录丢弃的帧
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// DocTransaction 记录文档事务
func (m *Metrics) DocTransaction(origin string) {
	if m == nil {
		return
	}
	m.docUpdates.WithLabelValues(origin).Inc()
}

// RelayPublish 记录中继发布结果
func (m *Metrics) RelayPublish(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.relay.WithLabelValues(result).Inc()
}

// Fatal 记录致命错误
func (m *Metrics) Fatal() {
	if m == nil {
		return
	}
	m.fatal.Inc()
}
