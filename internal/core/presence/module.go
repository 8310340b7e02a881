package presence

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Loop       *eventloop.Loop
	Doc        *document.Doc
	UnifiedCfg *config.Config `optional:"true"`
}

// ModuleOutput 定义模块输出服务
type ModuleOutput struct {
	fx.Out

	Store   *Store
	Renewer *Renewer
}

// ProvideServices 创建与文档共享 client ID 的存储及其刷新器
func ProvideServices(in ModuleInput) ModuleOutput {
	opts := []Option{WithClock(in.Loop.Clock())}
	if in.UnifiedCfg != nil {
		opts = append(opts, WithTimeouts(
			in.UnifiedCfg.Presence.OutdatedTimeout.Std(),
			in.UnifiedCfg.Presence.RenewInterval.Std(),
		))
	}
	store := New(in.Doc.ClientID(), opts...)
	return ModuleOutput{
		Store:   store,
		Renewer: NewRenewer(store, in.Loop),
	}
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("presence",
		fx.Provide(ProvideServices),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Loop    *eventloop.Loop
	Renewer *Renewer
}

func registerLifecycle(in lifecycleInput) {
	in.LC.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return in.Loop.Do(in.Renewer.Start)
		},
		OnStop: func(_ context.Context) error {
			_ = in.Loop.Do(in.Renewer.Stop)
			return nil
		},
	})
}
