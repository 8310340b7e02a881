package signaling

import (
	"time"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/pkg/types"
)

// Config 信令引擎配置
type Config struct {
	// PeerID 本节点标识
	PeerID types.PeerID
	// Addresses 房间与回复地址
	Addresses relay.Addresses

	// AnnounceMin/AnnounceMax Announce 的随机间隔
	AnnounceMin time.Duration
	AnnounceMax time.Duration

	// PendingTTL 暂存候选的存活时间
	PendingTTL time.Duration
	// PendingMaxPeers 最多为多少个未知节点暂存候选
	PendingMaxPeers int

	// NegotiationTimeout 停留在 negotiating 的最长时间，0 表示不限
	NegotiationTimeout time.Duration

	// ICEServersPerConn 每条连接随机选取的 STUN 服务器数
	ICEServersPerConn int
	// ChannelLabel 发起方创建的数据通道名
	ChannelLabel string
}

// DefaultConfig 返回默认配置（不含身份与地址）
func DefaultConfig() Config {
	return Config{
		AnnounceMin:        10 * time.Second,
		AnnounceMax:        30 * time.Second,
		PendingTTL:         20 * time.Second,
		PendingMaxPeers:    256,
		NegotiationTimeout: 30 * time.Second,
		ICEServersPerConn:  20,
		ChannelLabel:       "message",
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.AnnounceMin <= 0 {
		c.AnnounceMin = def.AnnounceMin
	}
	if c.AnnounceMax < c.AnnounceMin {
		c.AnnounceMax = c.AnnounceMin
	}
	if c.PendingTTL <= 0 {
		c.PendingTTL = def.PendingTTL
	}
	if c.PendingMaxPeers <= 0 {
		c.PendingMaxPeers = def.PendingMaxPeers
	}
	if c.ICEServersPerConn <= 0 {
		c.ICEServersPerConn = def.ICEServersPerConn
	}
	if c.ChannelLabel == "" {
		c.ChannelLabel = def.ChannelLabel
	}
}
