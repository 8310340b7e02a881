// Package sse 实现 smee.io 兼容的中继客户端
//
// 发布：POST <base>/<address>，请求体为 JSON payload。
// 订阅：GET <base>/<address>（text/event-stream），每个默认事件的 data 是
// {"body": <payload>, ...}。连接断开后按 RetryInterval 自动重连。
package sse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	r3sse "github.com/r3labs/sse/v2"
	backoff "gopkg.in/cenkalti/backoff.v1"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/internal/util/logger"
)

var log = logger.Logger("relay/sse")

const (
	// DefaultRetryInterval 断线重连间隔
	DefaultRetryInterval = 3 * time.Second

	maxEventSize = 1 << 20
)

// Relay SSE 中继客户端
type Relay struct {
	base   string
	client *http.Client
	retry  time.Duration
	clock  clock.Clock

	mu     sync.Mutex
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// Option 选项
type Option func(*Relay)

// WithHTTPClient 指定 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(r *Relay) {
		r.client = c
	}
}

// WithClock 指定重连计时使用的时钟
func WithClock(clk clock.Clock) Option {
	return func(r *Relay) {
		if clk != nil {
			r.clock = clk
		}
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

// New 创建客户端，baseURL 末尾的 / 会被去掉
func New(baseURL string, opts ...Option) *Relay {
	r := &Relay{
		base:   strings.TrimRight(baseURL, "/"),
		client: http.DefaultClient,
		retry:  DefaultRetryInterval,
		clock:  clock.New(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URL 返回地址对应的完整 URL；已经是 http(s) URL 的地址原样返回
func (r *Relay) URL(address string) string {
	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return address
	}
	return r.base + "/" + address
}

// Publish 以 POST 发布
func (r *Relay) Publish(ctx context.Context, address string, payload []byte) error {
	if address == "" {
		return relay.ErrEmptyAddress
	}
	if err := relay.ValidatePayload(payload); err != nil {
		return err
	}
	if r.isClosed() {
		return relay.ErrClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL(address), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", address, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("post %s: unexpected status %s", address, resp.Status)
	}
	return nil
}

// Subscribe 订阅事件流
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

	sctx, cancel := context.WithCancel(ctx)
	out := make(chan []byte, 64)

	go func() {
		select {
		case <-r.done:
			cancel()
		case <-sctx.Done():
		}
	}()

	go func() {
		defer r.wg.Done()
		defer close(out)
		defer cancel()

		client := r.newClient(r.URL(address))
		for {
			err := r.stream(sctx, client, out)
			if sctx.Err() != nil {
				return
			}
			log.Debug("事件流断开，稍后重连", "address", address, "err", err)
			timer := r.clock.Timer(r.retry)
			select {
			case <-sctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
		}
	}()
	return out, nil
}

// newClient 创建单个地址的事件流客户端
//
// 客户端自身只连接一次，重连由 Subscribe 按 RetryInterval 驱动。
func (r *Relay) newClient(url string) *r3sse.Client {
	c := r3sse.NewClient(url, r3sse.ClientMaxBufferSize(maxEventSize))
	c.Connection = r.client
	c.ReconnectStrategy = &backoff.StopBackOff{}
	return c
}

// stream 读取一条事件流直到出错或 ctx 结束
func (r *Relay) stream(ctx context.Context, client *r3sse.Client, out chan<- []byte) error {
	return client.SubscribeRawWithContext(ctx, func(ev *r3sse.Event) {
		if !isMessage(ev) {
			return
		}
		body, ok := extractBody(ev.Data)
		if !ok {
			log.Debug("忽略无法解析的事件", "data", string(ev.Data))
			return
		}
		select {
		case out <- body:
		case <-ctx.Done():
		}
	})
}

// isMessage 只有默认事件携带 payload，ready/ping 等命名事件被忽略
func isMessage(ev *r3sse.Event) bool {
	if ev == nil || len(ev.Data) == 0 {
		return false
	}
	return len(ev.Event) == 0 || string(ev.Event) == "message"
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
	return nil
}

// extractBody 取出事件数据中的 body 字段
func extractBody(data []byte) ([]byte, bool) {
	var env relay.SSEEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	if len(env.Body) == 0 || string(env.Body) == "null" {
		return nil, false
	}
	return env.Body, true
}
