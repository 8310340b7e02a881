// Package wsrelay 实现连接 relay/server 的 websocket 中继客户端
//
// 整个客户端共用一条 websocket 连接，断线后自动重连并重新订阅。
// 断线期间发布的消息在发送队列中等待，队列满时丢弃。
package wsrelay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/internal/util/logger"
)

var log = logger.Logger("relay/ws")

const (
	// DefaultRetryInterval 重连间隔
	DefaultRetryInterval = 2 * time.Second

	sendQueueSize = 256
	subBufferSize = 64
	writeWait     = 10 * time.Second
)

type subscriber struct {
	ch chan []byte
}

// Relay websocket 中继客户端
type Relay struct {
	url    string
	dialer *websocket.Dialer
	retry  time.Duration

	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	closed bool

	send   chan relay.WireFrame
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connected chan struct{}
	onceConn  sync.Once
}

// Option 选项
type Option func(*Relay)

// WithDialer 指定 websocket Dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(r *Relay) {
		r.dialer = d
	}
}

// WithRetryInterval 指定重连间隔
func WithRetryInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.retry = d
		}
	}
}

// New 创建客户端并在后台连接 url（ws:// 或 wss://，通常以 /ws 结尾）
func New(url string, opts ...Option) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Relay{
		url:       url,
		dialer:    websocket.DefaultDialer,
		retry:     DefaultRetryInterval,
		subs:      make(map[string]map[*subscriber]struct{}),
		send:      make(chan relay.WireFrame, sendQueueSize),
		ctx:       ctx,
		cancel:    cancel,
		connected: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.wg.Add(1)
	go r.run()
	return r
}

// Connected 第一次连接成功后关闭
func (r *Relay) Connected() <-chan struct{} {
	return r.connected
}

// Publish 入队发布帧
func (r *Relay) Publish(ctx context.Context, address string, payload []byte) error {
	if address == "" {
		return relay.ErrEmptyAddress
	}
	if err := relay.ValidatePayload(payload); err != nil {
		return err
	}
	f := relay.WireFrame{Op: relay.OpPublish, Address: address, Body: append(json.RawMessage(nil), payload...)}
	select {
	case r.send <- f:
		return nil
	case <-r.ctx.Done():
		return relay.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe 订阅地址
func (r *Relay) Subscribe(ctx context.Context, address string) (<-chan []byte, error) {
	if address == "" {
		return nil, relay.ErrEmptyAddress
	}
	s := &subscriber{ch: make(chan []byte, subBufferSize)}

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

	r.enqueue(relay.WireFrame{Op: relay.OpSubscribe, Address: address})

	go func() {
		select {
		case <-ctx.Done():
			r.unsubscribe(address, s)
		case <-r.ctx.Done():
		}
	}()
	return s.ch, nil
}

func (r *Relay) unsubscribe(address string, s *subscriber) {
	r.mu.Lock()
	set, ok := r.subs[address]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := set[s]; !ok {
		r.mu.Unlock()
		return
	}
	delete(set, s)
	close(s.ch)
	last := len(set) == 0
	if last {
		delete(r.subs, address)
	}
	r.mu.Unlock()

	if last {
		r.enqueue(relay.WireFrame{Op: relay.OpUnsubscribe, Address: address})
	}
}

func (r *Relay) enqueue(f relay.WireFrame) {
	select {
	case r.send <- f:
	case <-r.ctx.Done():
	default:
		log.Warn("发送队列已满，丢弃帧", "op", f.Op, "address", f.Address)
	}
}

func (r *Relay) addresses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.subs))
	for a := range r.subs {
		out = append(out, a)
	}
	return out
}

func (r *Relay) dispatch(f relay.WireFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for s := range r.subs[f.Address] {
		select {
		case s.ch <- []byte(f.Body):
		default:
			log.Warn("订阅缓冲已满，丢弃消息", "address", f.Address)
		}
	}
}

// run 连接、重连循环
func (r *Relay) run() {
	defer r.wg.Done()
	for {
		conn, _, err := r.dialer.DialContext(r.ctx, r.url, nil)
		if err == nil {
			r.onceConn.Do(func() { close(r.connected) })
			r.serve(conn)
		} else {
			log.Debug("连接中继失败", "url", r.url, "err", err)
		}

		select {
		case <-r.ctx.Done():
			return
		case <-time.After(r.retry):
		}
	}
}

// serve 使用一条连接直到出错
func (r *Relay) serve(conn *websocket.Conn) {
	defer conn.Close()

	// 重新订阅，此时写循环尚未启动
	for _, a := range r.addresses() {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(relay.WireFrame{Op: relay.OpSubscribe, Address: a}); err != nil {
			return
		}
	}

	ctx, cancel := context.WithCancel(r.ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			case f := <-r.send:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(f); err != nil {
					log.Debug("写入失败", "err", err)
					return
				}
			}
		}
	}()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		var f relay.WireFrame
		if err := conn.ReadJSON(&f); err != nil {
			break
		}
		if f.Op == relay.OpMessage {
			r.dispatch(f)
		}
	}
	cancel()
	<-done
}

// Close 断开连接并关闭全部订阅
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	r.cancel()
	r.wg.Wait()

	r.mu.Lock()
	for _, set := range r.subs {
		for s := range set {
			close(s.ch)
		}
	}
	r.subs = nil
	r.mu.Unlock()
	return nil
}
