// Package redisrelay 基于 Redis pub/sub 的中继
//
// 地址直接作为 Redis channel 名。多个中继服务端实例共享同一 Redis 时，
// 连接到任意实例的客户端都能互相收到消息。
package redisrelay

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/internal/util/logger"
)

var log = logger.Logger("relay/redis")

const subBufferSize = 64

// Relay Redis 中继
type Relay struct {
	rdb    *redis.Client
	prefix string
	owned  bool

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option 选项
type Option func(*Relay)

// WithChannelPrefix 为所有 channel 名加前缀
func WithChannelPrefix(prefix string) Option {
	return func(r *Relay) {
		r.prefix = prefix
	}
}

// New 使用已有客户端创建中继，客户端生命周期由调用方管理
func New(rdb *redis.Client, opts ...Option) *Relay {
	r := &Relay{rdb: rdb, done: make(chan struct{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dial 连接 Redis 并创建中继，Close 时一并关闭客户端
func Dial(ctx context.Context, addr string, opts ...Option) (*Relay, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	r := New(rdb, opts...)
	r.owned = true
	return r, nil
}

func (r *Relay) channel(address string) string {
	return r.prefix + address
}

// Publish 发布到 channel
func (r *Relay) Publish(ctx context.Context, address string, payload []byte) error {
	if address == "" {
		return relay.ErrEmptyAddress
	}
	if r.isClosed() {
		return relay.ErrClosed
	}
	if err := r.rdb.Publish(ctx, r.channel(address), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", address, err)
	}
	return nil
}

// Subscribe 订阅 channel
func (r *Relay) Subscribe(ctx context.Context, address string) (<-chan []byte, error) {
	if address == "" {
		return nil, relay.ErrEmptyAddress
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, relay.ErrClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	ps := r.rdb.Subscribe(ctx, r.channel(address))
	// 等待订阅确认，之后的发布一定能收到
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		r.wg.Done()
		return nil, fmt.Errorf("redis subscribe %s: %w", address, err)
	}

	out := make(chan []byte, subBufferSize)
	go func() {
		defer r.wg.Done()
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.done:
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(m.Payload):
				default:
					log.Warn("订阅缓冲已满，丢弃消息", "address", address)
				}
			}
		}
	}()
	return out, nil
}

func (r *Relay) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Close 关闭全部订阅
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.done)
	r.mu.Unlock()

	r.wg.Wait()
	if r.owned {
		return r.rdb.Close()
	}
	return nil
}
