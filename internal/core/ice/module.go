package ice

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-coedit/config"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// ProvidePool 按配置创建服务器池，未配置服务器时使用 DefaultServers
func ProvidePool(in ModuleInput) (*Pool, error) {
	servers := DefaultServers
	if in.UnifiedCfg != nil && len(in.UnifiedCfg.ICE.Servers) > 0 {
		servers = in.UnifiedCfg.ICE.Servers
	}
	return NewPool(servers)
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("ice",
		fx.Provide(ProvidePool),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC         fx.Lifecycle
	Pool       *Pool
	UnifiedCfg *config.Config `optional:"true"`
}

// registerLifecycle 启用探测时在启动阶段剔除不可达的服务器
func registerLifecycle(in lifecycleInput) {
	if in.UnifiedCfg == nil || !in.UnifiedCfg.ICE.ProbeSTUN {
		return
	}
	prober := NewProber(in.UnifiedCfg.ICE.ProbeTimeout.Std())
	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ProbePool(ctx, prober, in.Pool)
			return nil
		},
	})
}

// ProbePool 探测池中全部服务器并只保留可达的
func ProbePool(ctx context.Context, prober *Prober, pool *Pool) {
	servers := pool.Servers()
	alive := prober.Filter(ctx, servers)
	pool.Retain(alive)
	log.Info("STUN 探测完成", "total", len(servers), "alive", len(alive), "using", pool.Len())
}
