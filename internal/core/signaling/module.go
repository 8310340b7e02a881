package signaling

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/eventbus"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/ice"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	PeerID    types.PeerID
	Loop      *eventloop.Loop
	Relay     interfaces.Relay
	Outbox    *relay.Outbox
	Transport interfaces.TransportFactory
	ICE       *ice.Pool
	Handler   Handler

	UnifiedCfg *config.Config   `optional:"true"`
	Bus        *eventbus.Bus    `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// ConfigFromUnified 从统一配置创建引擎配置
func ConfigFromUnified(cfg *config.Config, peer types.PeerID) Config {
	c := DefaultConfig()
	c.PeerID = peer
	if cfg == nil {
		c.Addresses = relay.NewAddresses("", "", peer)
		return c
	}
	c.Addresses = relay.NewAddresses(cfg.Relay.Prefix, cfg.Room, peer)
	c.AnnounceMin = cfg.Signaling.AnnounceMin.Std()
	c.AnnounceMax = cfg.Signaling.AnnounceMax.Std()
	c.PendingTTL = cfg.Signaling.PendingTTL.Std()
	c.PendingMaxPeers = cfg.Signaling.PendingMaxPeers
	c.NegotiationTimeout = cfg.Signaling.NegotiationTimeout.Std()
	c.ChannelLabel = cfg.Signaling.ChannelLabel
	c.ICEServersPerConn = cfg.ICE.ServersPerConnection
	return c
}

// ProvideEngine 创建信令引擎
func ProvideEngine(in ModuleInput) (*Engine, error) {
	return New(Params{
		Config:    ConfigFromUnified(in.UnifiedCfg, in.PeerID),
		Loop:      in.Loop,
		Relay:     in.Relay,
		Outbox:    in.Outbox,
		Transport: in.Transport,
		ICE:       in.ICE,
		Handler:   in.Handler,
		Bus:       in.Bus,
		Metrics:   in.Metrics,
	})
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("signaling",
		fx.Provide(ProvideEngine),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC     fx.Lifecycle
	Engine *Engine
}

func registerLifecycle(in lifecycleInput) {
	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return in.Engine.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			log.Info("信令停止", "peer", in.Engine.ID())
			return in.Engine.Close()
		},
	})
}
