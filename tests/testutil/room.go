// Package testutil 提供多会话测试工具
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coedit "github.com/dep2p/go-coedit"
	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/relay/memory"
	"github.com/dep2p/go-coedit/pkg/types"
	"github.com/dep2p/go-coedit/tests/mocks"
)

// Room 共享进程内中继与假 WebRTC 网络的一组会话
type Room struct {
	t     *testing.T
	Name  string
	Relay *memory.Relay
	Net   *mocks.Network

	sessions []*coedit.Session
}

// NewRoom 创建房间，测试结束时关闭全部会话
func NewRoom(t *testing.T, name string) *Room {
	t.Helper()
	r := &Room{
		t:     t,
		Name:  name,
		Relay: memory.New(),
		Net:   mocks.NewNetwork(),
	}
	t.Cleanup(r.Close)
	return r
}

// Config 返回测试用配置：进程内中继、短 announce 间隔、开启指标
func (r *Room) Config() *config.Config {
	cfg := config.NewConfig()
	cfg.Room = r.Name
	cfg.Relay = cfg.Relay.WithBackend(config.RelayBackendMemory)
	cfg.Signaling = cfg.Signaling.WithAnnounceInterval(20*time.Millisecond, 50*time.Millisecond)
	cfg.Sync.HeartbeatMin = config.Duration(50 * time.Millisecond)
	cfg.Sync.HeartbeatMax = config.Duration(100 * time.Millisecond)
	cfg.Metrics.Enabled = true
	return cfg
}

// Join 以 id 加入房间
func (r *Room) Join(id string, opts ...coedit.Option) *coedit.Session {
	r.t.Helper()
	base := []coedit.Option{
		coedit.WithConfig(r.Config()),
		coedit.WithPeerID(types.PeerID(id)),
		coedit.WithRelay(r.Relay),
		coedit.WithTransport(r.Net.Transport(id)),
	}
	s, err := coedit.Start(context.Background(), append(base, opts...)...)
	require.NoError(r.t, err, "join %s", id)
	r.sessions = append(r.sessions, s)
	return s
}

// JoinN 加入 n 个会话，标识为 P0..Pn-1
func (r *Room) JoinN(n int) []*coedit.Session {
	r.t.Helper()
	out := make([]*coedit.Session, n)
	for i := range out {
		out[i] = r.Join(fmt.Sprintf("P%d", i))
	}
	return out
}

// Sessions 返回已加入的会话
func (r *Room) Sessions() []*coedit.Session {
	return r.sessions
}

// Close 关闭全部会话
func (r *Room) Close() {
	for _, s := range r.sessions {
		_ = s.Close()
	}
	_ = r.Relay.Close()
}
