package document

import "go.uber.org/fx"

// Module 返回 Fx 模块
//
// 每个会话一个文档，client ID 随机生成。
func Module() fx.Option {
	return fx.Module("document",
		fx.Provide(func() *Doc { return New() }),
	)
}
