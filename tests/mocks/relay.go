package mocks

import (
	"context"
	"errors"
	"sync"
)

// PublishCall 一次发布调用
type PublishCall struct {
	Address string
	Payload []byte
}

// MockRelay 模拟 interfaces.Relay
type MockRelay struct {
	mu     sync.Mutex
	subs   map[string][]chan []byte
	closed bool

	// 可覆盖的方法
	PublishFunc   func(ctx context.Context, address string, payload []byte) error
	SubscribeFunc func(ctx context.Context, address string) (<-chan []byte, error)

	// 调用记录
	PublishCalls   []PublishCall
	SubscribeCalls []string
}

// NewMockRelay 创建 MockRelay
func NewMockRelay() *MockRelay {
	return &MockRelay{subs: make(map[string][]chan []byte)}
}

// Publish 记录发布；不会投递给订阅者，投递由 Deliver 控制
func (m *MockRelay) Publish(ctx context.Context, address string, payload []byte) error {
	m.mu.Lock()
	m.PublishCalls = append(m.PublishCalls, PublishCall{Address: address, Payload: append([]byte(nil), payload...)})
	fn := m.PublishFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, address, payload)
	}
	return nil
}

// Subscribe 返回一个由 Deliver 驱动的订阅
func (m *MockRelay) Subscribe(ctx context.Context, address string) (<-chan []byte, error) {
	m.mu.Lock()
	m.SubscribeCalls = append(m.SubscribeCalls, address)
	fn := m.SubscribeFunc
	if fn == nil && m.closed {
		m.mu.Unlock()
		return nil, errors.New("mock relay closed")
	}
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, address)
	}

	ch := make(chan []byte, 64)
	m.mu.Lock()
	m.subs[address] = append(m.subs[address], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.unsubscribe(address, ch)
	}()
	return ch, nil
}

func (m *MockRelay) unsubscribe(address string, ch chan []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[address]
	for i, c := range list {
		if c == ch {
			m.subs[address] = append(list[:i:i], list[i+1:]...)
			close(ch)
			return
		}
	}
}

// Deliver 向某地址的所有订阅投递一条消息
func (m *MockRelay) Deliver(address string, payload []byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ch := range m.subs[address] {
		select {
		case ch <- payload:
			n++
		default:
		}
	}
	return n
}

// Published 返回发往某地址的载荷
func (m *MockRelay) Published(address string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out [][]byte
	for _, c := range m.PublishCalls {
		if c.Address == address {
			out = append(out, c.Payload)
		}
	}
	return out
}

// Close 关闭所有订阅
func (m *MockRelay) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	for _, list := range m.subs {
		for _, ch := range list {
			close(ch)
		}
	}
	m.subs = make(map[string][]chan []byte)
	return nil
}
