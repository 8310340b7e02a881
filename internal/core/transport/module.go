package transport

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-coedit/internal/core/transport/webrtc"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

// Params 依赖参数
type Params struct {
	fx.In

	// Options 额外的 SettingEngine 选项
	Options []webrtc.Option `group:"webrtc_options"`
}

// ProvideFactory 创建 pion 连接工厂
func ProvideFactory(p Params) interfaces.TransportFactory {
	return webrtc.NewFactory(p.Options...)
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideFactory),
	)
}

// Loopback 返回允许回环候选的 fx 选项（同机测试用）
func Loopback() fx.Option {
	return fx.Provide(fx.Annotate(webrtc.WithLoopback, fx.ResultTags(`group:"webrtc_options"`)))
}
