// Package memory 实现进程内中继
//
// 发布会扇出到该地址当前的全部订阅者，包括发布者自己；订阅者缓冲满时
// 消息被丢弃，与真实中继"至少一次但不保证"的语义相容。
package memory

import (
	"context"
	"sync"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/internal/util/logger"
)

var log = logger.Logger("relay/memory")

// DefaultBufferSize 每个订阅的缓冲大小
const DefaultBufferSize = 256

type subscriber struct {
	ch chan []byte
}

// Relay 进程内中继，可被多个会话共享
type Relay struct {
	bufSize int

	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool
	done   chan struct{}
}

// Option 选项
type Option func(*Relay)

// WithBufferSize 设置订阅缓冲大小
func WithBufferSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.bufSize = n
		}
	}
}

// New 创建进程内中继
func New(opts ...Option) *Relay {
	r := &Relay{
		bufSize: DefaultBufferSize,
		subs:    make(map[string]map[*subscriber]struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Publish 扇出消息
func (r *Relay) Publish(_ context.Context, address string, payload []byte) error {
	if address == "" {
		return relay.ErrEmptyAddress
	}
	msg := append([]byte(nil), payload...)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return relay.ErrClosed
	}
	for s := range r.subs[address] {
		select {
		case s.ch <- msg:
		default:
			log.Warn("订阅缓冲已满，丢弃消息", "address", address)
		}
	}
	return nil
}

// Subscribe 订阅地址
func (r *Relay) Subscribe(ctx context.Context, address string) (<-chan []byte, error) {
	if address == "" {
		return nil, relay.ErrEmptyAddress
	}
	s := &subscriber{ch: make(chan []byte, r.bufSize)}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, relay.ErrClosed
	}
	set, ok := r.subs[address]
	if !ok {
		set = make(map[*subscriber]struct{})
		r.subs[address] = set
	}
	set[s] = struct{}{}
	r.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			r.unsubscribe(address, s)
		case <-r.done:
		}
	}()
	return s.ch, nil
}

func (r *Relay) unsubscribe(address string, s *subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[address]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.ch)
	if len(set) == 0 {
		delete(r.subs, address)
	}
}

// Subscribers 返回地址当前的订阅数
func (r *Relay) Subscribers(address string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs[address])
}

// Close 关闭中继，所有订阅通道被关闭
func (r *Relay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	close(r.done)
	for _, set := range r.subs {
		for s := range set {
			close(s.ch)
		}
	}
	r.subs = nil
	return nil
}
