package server

import "github.com/prometheus/client_golang/prometheus"

// Metrics 中继服务端指标
type Metrics struct {
	Connections *prometheus.GaugeVec
	Published   prometheus.Counter
	Delivered   prometheus.Counter
	Rejected    *prometheus.CounterVec
}

// NewMetrics 创建指标并注册到 reg，reg 为 nil 时不注册
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Connections: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "coedit",
			Subsystem: "relay_server",
			Name:      "connections",
			Help:      "当前连接数",
		}, []string{"kind"}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coedit",
			Subsystem: "relay_server",
			Name:      "published_total",
			Help:      "发布的消息数",
		}),
		Delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "coedit",
			Subsystem: "relay_server",
			Name:      "delivered_total",
			Help:      "推送给订阅者的消息数",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "coedit",
			Subsystem: "relay_server",
			Name:      "rejected_total",
			Help:      "被拒绝的请求数",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.Connections, m.Published, m.Delivered, m.Rejected)
	}
	return m
}
