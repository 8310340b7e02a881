package eventloop

import (
	"context"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
)

// Params 依赖参数
type Params struct {
	fx.In

	LC    fx.Lifecycle
	Clock clock.Clock `optional:"true"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventloop",
		fx.Provide(ProvideLoop),
	)
}

// ProvideLoop 创建事件循环，应用停止时最后关闭
//
// 生命周期钩子在构造时注册，先于所有依赖 Loop 的组件，因此停止顺序在它们之后。
func ProvideLoop(p Params) *Loop {
	loop := New(p.Clock)
	p.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			log.Debug("事件循环停止")
			return loop.Close()
		},
	})
	return loop
}
