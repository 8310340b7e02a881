package config

import (
	"errors"
	"time"
)

// SignalingConfig 发现与协商配置
//
// 默认值沿用公共 smee.io 部署下验证过的取值：
//   - Announce 每 10~30 秒随机一次
//   - 先于连接记录到达的候选保留 20 秒
type SignalingConfig struct {
	// AnnounceMin/AnnounceMax Announce 间隔的随机区间
	AnnounceMin Duration `json:"announce_min"`
	AnnounceMax Duration `json:"announce_max"`

	// PendingTTL 暂存候选的存活时间，从第一个候选到达开始计算
	PendingTTL Duration `json:"pending_ttl"`

	// PendingMaxPeers 最多为多少个未知节点暂存候选
	PendingMaxPeers int `json:"pending_max_peers"`

	// NegotiationTimeout 停留在 negotiating 的最长时间，0 表示不限
	NegotiationTimeout Duration `json:"negotiation_timeout"`

	// ChannelLabel 数据通道名
	ChannelLabel string `json:"channel_label"`
}

// DefaultSignalingConfig 返回默认信令配置
func DefaultSignalingConfig() SignalingConfig {
	return SignalingConfig{
		AnnounceMin:        Duration(10 * time.Second),
		AnnounceMax:        Duration(30 * time.Second),
		PendingTTL:         Duration(20 * time.Second),
		PendingMaxPeers:    256,
		NegotiationTimeout: Duration(30 * time.Second),
		ChannelLabel:       "message",
	}
}

// Validate 验证信令配置
func (c SignalingConfig) Validate() error {
	if c.AnnounceMin <= 0 {
		return errors.New("signaling.announce_min must be positive")
	}
	if c.AnnounceMax < c.AnnounceMin {
		return errors.New("signaling.announce_max must not be less than announce_min")
	}
	if c.PendingTTL <= 0 {
		return errors.New("signaling.pending_ttl must be positive")
	}
	if c.PendingMaxPeers <= 0 {
		return errors.New("signaling.pending_max_peers must be positive")
	}
	if c.NegotiationTimeout < 0 {
		return errors.New("signaling.negotiation_timeout must not be negative")
	}
	if c.ChannelLabel == "" {
		return errors.New("signaling.channel_label must not be empty")
	}
	return nil
}

// WithAnnounceInterval 设置 Announce 间隔区间
func (c SignalingConfig) WithAnnounceInterval(min, max time.Duration) SignalingConfig {
	c.AnnounceMin = Duration(min)
	c.AnnounceMax = Duration(max)
	return c
}

// WithNegotiationTimeout 设置协商超时
func (c SignalingConfig) WithNegotiationTimeout(d time.Duration) SignalingConfig {
	c.NegotiationTimeout = Duration(d)
	return c
}
