package ice

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"github.com/pion/stun"
	"github.com/pion/webrtc/v4"
)

// ErrNoServers 没有可用的 STUN 服务器
var ErrNoServers = errors.New("no STUN servers")

// DefaultServers 默认的公共 STUN 服务器
var DefaultServers = []string{
	"stun.l.google.com:19302",
	"stun1.l.google.com:19302",
	"stun2.l.google.com:19302",
	"stun3.l.google.com:19302",
	"stun4.l.google.com:19302",
	"stun.cloudflare.com:3478",
	"global.stun.twilio.com:3478",
	"stun.nextcloud.com:443",
}

// Pool STUN 服务器池
type Pool struct {
	mu      sync.RWMutex
	servers []string
	rnd     *rand.Rand
}

// NewPool 创建服务器池
//
// 条目可以是 host:port 或 stun:host:port，统一规范为 stun:host:port。
func NewPool(servers []string) (*Pool, error) {
	norm := make([]string, 0, len(servers))
	for _, s := range servers {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		uri, err := Normalize(s)
		if err != nil {
			return nil, err
		}
		norm = append(norm, uri)
	}
	return &Pool{servers: norm, rnd: rand.New(rand.NewSource(rand.Int63()))}, nil
}

// Normalize 把服务器条目规范为 stun:host:port
func Normalize(server string) (string, error) {
	raw := server
	if !strings.HasPrefix(raw, "stun:") && !strings.HasPrefix(raw, "stuns:") {
		raw = "stun:" + raw
	}
	u, err := stun.ParseURI(raw)
	if err != nil {
		return "", fmt.Errorf("invalid STUN server %q: %w", server, err)
	}
	if u.Scheme != stun.SchemeTypeSTUN && u.Scheme != stun.SchemeTypeSTUNS {
		return "", fmt.Errorf("invalid STUN server %q: scheme %s", server, u.Scheme)
	}
	return fmt.Sprintf("%s:%s:%d", u.Scheme, u.Host, u.Port), nil
}

// Servers 返回当前服务器列表
func (p *Pool) Servers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.servers...)
}

// Len 返回服务器数量
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.servers)
}

// Pick 随机挑选 n 个服务器（允许重复）
func (p *Pool) Pick(n int) []webrtc.ICEServer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.servers) == 0 || n <= 0 {
		return nil
	}
	out := make([]webrtc.ICEServer, n)
	for i := range out {
		out[i] = webrtc.ICEServer{URLs: []string{p.servers[p.rnd.Intn(len(p.servers))]}}
	}
	return out
}

// Retain 只保留 keep 中的服务器；结果为空时保持原列表不变
func (p *Pool) Retain(keep []string) {
	set := make(map[string]struct{}, len(keep))
	for _, s := range keep {
		set[s] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var kept []string
	for _, s := range p.servers {
		if _, ok := set[s]; ok {
			kept = append(kept, s)
		}
	}
	if len(kept) > 0 {
		p.servers = kept
	}
}
