package server

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// clientExpiry 空闲客户端的限流状态保留时间
const clientExpiry = 5 * time.Minute

// LimiterConfig 限流配置，0 表示不限制
type LimiterConfig struct {
	// MaxConnections 最大连接数（websocket + SSE）
	MaxConnections int
	// MaxConnectionsPerClient 单客户端最大连接数
	MaxConnectionsPerClient int
	// PublishRate 单客户端每秒发布数
	PublishRate float64
	// PublishBurst 单客户端突发发布数
	PublishBurst int
}

// DefaultLimiterConfig 返回默认配置（不限制）
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{}
}

// StrictLimiterConfig 返回公共中继使用的严格配置
func StrictLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxConnections:          1024,
		MaxConnectionsPerClient: 8,
		PublishRate:             20,
		PublishBurst:            40,
	}
}

type clientState struct {
	conns    int
	publish  *rate.Limiter
	lastSeen time.Time
}

// Limiter 按客户端（远端 IP）限制连接数与发布频率
type Limiter struct {
	config LimiterConfig

	mu      sync.Mutex
	clients map[string]*clientState
	total   int
}

// NewLimiter 创建限流器
func NewLimiter(config LimiterConfig) *Limiter {
	return &Limiter{
		config:  config,
		clients: make(map[string]*clientState),
	}
}

func (l *Limiter) clientLocked(client string) *clientState {
	c, ok := l.clients[client]
	if !ok {
		c = &clientState{}
		if l.config.PublishRate > 0 {
			burst := l.config.PublishBurst
			if burst <= 0 {
				burst = 1
			}
			c.publish = rate.NewLimiter(rate.Limit(l.config.PublishRate), burst)
		}
		l.clients[client] = c
	}
	c.lastSeen = time.Now()
	return c
}

// AcquireConn 占用一个连接名额
func (l *Limiter) AcquireConn(client string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cleanupLocked()

	if l.config.MaxConnections > 0 && l.total >= l.config.MaxConnections {
		return ErrTooManyConnections
	}
	c := l.clientLocked(client)
	if l.config.MaxConnectionsPerClient > 0 && c.conns >= l.config.MaxConnectionsPerClient {
		return ErrTooManyClientConnections
	}
	c.conns++
	l.total++
	return nil
}

// ReleaseConn 归还连接名额
func (l *Limiter) ReleaseConn(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[client]
	if !ok || c.conns == 0 {
		return
	}
	c.conns--
	l.total--
	c.lastSeen = time.Now()
}

// AllowPublish 检查发布频率
func (l *Limiter) AllowPublish(client string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := l.clientLocked(client)
	if c.publish != nil && !c.publish.Allow() {
		return ErrRateLimited
	}
	return nil
}

// cleanupLocked 清理没有连接且长时间未活动的客户端（需要持有锁）
func (l *Limiter) cleanupLocked() {
	now := time.Now()
	for client, c := range l.clients {
		if c.conns == 0 && now.Sub(c.lastSeen) > clientExpiry {
			delete(l.clients, client)
		}
	}
}

// LimiterStats 限流器统计
type LimiterStats struct {
	Connections    int
	UniqueClients  int
	MaxConnections int
	MaxPerClient   int
}

// Stats 返回统计
func (l *Limiter) Stats() LimiterStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	unique := 0
	for _, c := range l.clients {
		if c.conns > 0 {
			unique++
		}
	}
	return LimiterStats{
		Connections:    l.total,
		UniqueClients:  unique,
		MaxConnections: l.config.MaxConnections,
		MaxPerClient:   l.config.MaxConnectionsPerClient,
	}
}
