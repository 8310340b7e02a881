package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// 中继后端
const (
	// RelayBackendSSE smee.io 兼容的 HTTP POST + Server-Sent Events
	RelayBackendSSE = "sse"
	// RelayBackendWebSocket 本项目 relay-server 的 websocket 接口
	RelayBackendWebSocket = "websocket"
	// RelayBackendRedis Redis pub/sub
	RelayBackendRedis = "redis"
	// RelayBackendMemory 进程内中继（测试与单机演示）
	RelayBackendMemory = "memory"
)

// EnvRelayURL 覆盖默认中继地址的环境变量
const EnvRelayURL = "COEDIT_RELAY_URL"

// defaultRelayURL 未设置环境变量时使用的公共中继
const defaultRelayURL = "https://smee.io"

// RelayConfig 中继配置
//
// 中继只负责转发信令：节点向房间地址广播自身，向对方的回复地址发送
// offer/answer/候选。文档内容不经过中继。
type RelayConfig struct {
	// Backend 后端类型：sse / websocket / redis / memory
	Backend string `json:"backend"`

	// URL 中继地址
	//   - sse: 基础 URL，如 https://smee.io
	//   - websocket: ws(s)://host/ws
	//   - redis: host:port
	URL string `json:"url"`

	// Prefix 地址前缀，生成 <prefix>-room-<room> 与 <prefix>-reply-<peer>
	Prefix string `json:"prefix"`

	// RetryInterval 订阅断开后的重连间隔
	RetryInterval Duration `json:"retry_interval"`

	// Outbox 发布队列
	Outbox OutboxConfig `json:"outbox"`
}

// OutboxConfig 发布队列配置
type OutboxConfig struct {
	// QueueSize 队列长度，满时丢弃新消息
	QueueSize int `json:"queue_size"`

	// Rate 每秒发布上限，0 表示不限制
	Rate float64 `json:"rate"`

	// Burst 突发上限
	Burst int `json:"burst"`

	// Timeout 单次发布超时
	Timeout Duration `json:"timeout"`
}

// DefaultRelayConfig 返回默认中继配置
//
// URL 取自 COEDIT_RELAY_URL，未设置时为 https://smee.io，末尾的 / 被去掉。
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Backend:       RelayBackendSSE,
		URL:           RelayURLFromEnv(),
		Prefix:        "coedit",
		RetryInterval: Duration(3 * time.Second),
		Outbox: OutboxConfig{
			QueueSize: 256,
			Rate:      20,
			Burst:     40,
			Timeout:   Duration(10 * time.Second),
		},
	}
}

// RelayURLFromEnv 读取 COEDIT_RELAY_URL
func RelayURLFromEnv() string {
	url := strings.TrimSpace(os.Getenv(EnvRelayURL))
	if url == "" {
		url = defaultRelayURL
	}
	return strings.TrimSuffix(url, "/")
}

// Validate 验证中继配置
func (c RelayConfig) Validate() error {
	switch c.Backend {
	case RelayBackendSSE, RelayBackendWebSocket, RelayBackendRedis:
		if c.URL == "" {
			return fmt.Errorf("relay.url is required for backend %q", c.Backend)
		}
	case RelayBackendMemory:
	default:
		return fmt.Errorf("relay.backend: unknown backend %q", c.Backend)
	}
	if c.Prefix == "" {
		return errors.New("relay.prefix must not be empty")
	}
	if c.RetryInterval < 0 {
		return errors.New("relay.retry_interval must not be negative")
	}
	if c.Outbox.QueueSize <= 0 {
		return errors.New("relay.outbox.queue_size must be positive")
	}
	if c.Outbox.Rate < 0 || c.Outbox.Burst < 0 {
		return errors.New("relay.outbox rate and burst must not be negative")
	}
	return nil
}

// WithBackend 设置后端
func (c RelayConfig) WithBackend(backend string) RelayConfig {
	c.Backend = backend
	return c
}

// WithURL 设置中继地址
func (c RelayConfig) WithURL(url string) RelayConfig {
	c.URL = strings.TrimSuffix(url, "/")
	return c
}

// WithPrefix 设置地址前缀
func (c RelayConfig) WithPrefix(prefix string) RelayConfig {
	c.Prefix = prefix
	return c
}
