package relay

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	LC         fx.Lifecycle
	Relay      interfaces.Relay
	UnifiedCfg *config.Config   `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// OutboxConfigFromUnified 从统一配置创建发布队列配置
func OutboxConfigFromUnified(cfg *config.Config) OutboxConfig {
	if cfg == nil {
		return DefaultOutboxConfig()
	}
	return OutboxConfig{
		QueueSize: cfg.Relay.Outbox.QueueSize,
		Rate:      cfg.Relay.Outbox.Rate,
		Burst:     cfg.Relay.Outbox.Burst,
		Timeout:   cfg.Relay.Outbox.Timeout.Std(),
	}
}

// ProvideOutbox 创建发布队列
//
// 应用停止时先关闭队列再关闭中继。
func ProvideOutbox(in ModuleInput) *Outbox {
	cfg := OutboxConfigFromUnified(in.UnifiedCfg)
	if in.Metrics != nil {
		cfg.OnResult = func(_ string, err error) {
			in.Metrics.RelayPublish(err)
		}
	}
	outbox := NewOutbox(in.Relay, cfg)
	in.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			stats := outbox.Stats()
			log.Info("中继停止", "published", stats.Published, "failed", stats.Failed, "dropped", stats.Dropped)
			return multierr.Combine(outbox.Close(), in.Relay.Close())
		},
	})
	return outbox
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("relay",
		fx.Provide(ProvideOutbox),
	)
}
