package ice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/pion/stun"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-coedit/internal/util/logger"
)

var log = logger.Logger("ice")

// DefaultProbeTimeout 单个服务器的探测超时
const DefaultProbeTimeout = 3 * time.Second

// maxConcurrentProbes 同时探测的服务器数
const maxConcurrentProbes = 8

// ProbeError 探测失败
type ProbeError struct {
	Server  string
	Message string
	Cause   error
}

func (e *ProbeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stun %s: %s: %v", e.Server, e.Message, e.Cause)
	}
	return fmt.Sprintf("stun %s: %s", e.Server, e.Message)
}

func (e *ProbeError) Unwrap() error {
	return e.Cause
}

// QueryFunc 向单个服务器发送 Binding 请求并返回映射地址
type QueryFunc func(ctx context.Context, server string) (*net.UDPAddr, error)

// Prober STUN 探测器
type Prober struct {
	timeout time.Duration
	query   QueryFunc
}

// NewProber 创建探测器
func NewProber(timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	p := &Prober{timeout: timeout}
	p.query = p.queryServer
	return p
}

// SetQueryFunc 替换查询函数（用于测试）
func (p *Prober) SetQueryFunc(f QueryFunc) {
	p.query = f
}

// Query 探测单个服务器（stun:host:port 或 host:port）
func (p *Prober) Query(ctx context.Context, server string) (*net.UDPAddr, error) {
	return p.query(ctx, server)
}

// Filter 并发探测，返回可达的服务器（保持原顺序）
func (p *Prober) Filter(ctx context.Context, servers []string) []string {
	ok := make([]bool, len(servers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for i, s := range servers {
		g.Go(func() error {
			addr, err := p.query(gctx, s)
			if err != nil {
				log.Debug("STUN 服务器不可达", "server", s, "err", err)
				return nil
			}
			log.Debug("STUN 服务器可达", "server", s, "mapped", addr)
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]string, 0, len(servers))
	for i, s := range servers {
		if ok[i] {
			out = append(out, s)
		}
	}
	return out
}

// queryServer 发送 STUN Binding 请求
func (p *Prober) queryServer(ctx context.Context, server string) (*net.UDPAddr, error) {
	hostport := strings.TrimPrefix(strings.TrimPrefix(server, "stun:"), "stuns:")

	addr, err := net.ResolveUDPAddr("udp", hostport)
	if err != nil {
		return nil, &ProbeError{Server: server, Message: "resolve server address", Cause: err}
	}

	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, &ProbeError{Server: server, Message: "dial server", Cause: err}
	}
	defer conn.Close()

	// ctx 结束时立即解除阻塞的读
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	msg, err := stun.Build(stun.TransactionID, stun.BindingRequest)
	if err != nil {
		return nil, &ProbeError{Server: server, Message: "build request", Cause: err}
	}
	if _, err := msg.WriteTo(conn); err != nil {
		return nil, &ProbeError{Server: server, Message: "send request", Cause: err}
	}

	buf := make([]byte, 1500)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProbeError{Server: server, Message: "read response", Cause: err}
	}

	res := &stun.Message{Raw: buf[:n]}
	if err := res.Decode(); err != nil {
		return nil, &ProbeError{Server: server, Message: "decode response", Cause: err}
	}
	if res.TransactionID != msg.TransactionID {
		return nil, &ProbeError{Server: server, Message: "transaction id mismatch"}
	}

	var xorAddr stun.XORMappedAddress
	if err := xorAddr.GetFrom(res); err == nil {
		return &net.UDPAddr{IP: xorAddr.IP, Port: xorAddr.Port}, nil
	}
	var mapped stun.MappedAddress
	if err := mapped.GetFrom(res); err != nil {
		return nil, &ProbeError{Server: server, Message: "no mapped address in response", Cause: err}
	}
	return &net.UDPAddr{IP: mapped.IP, Port: mapped.Port}, nil
}

// IsProbeError 判断是否为探测错误
func IsProbeError(err error) bool {
	var pe *ProbeError
	return errors.As(err, &pe)
}
