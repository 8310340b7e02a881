package binding

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/eventbus"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	LC       fx.Lifecycle
	Loop     *eventloop.Loop
	Doc      *document.Doc
	Presence *presence.Store

	// Surface 未提供时不创建绑定
	Surface interfaces.Surface `optional:"true"`
	Bus     *eventbus.Bus      `optional:"true"`
	Metrics *metrics.Metrics   `optional:"true"`
}

// ProvideBinding 在事件循环上绑定表面，应用停止时释放
//
// 文档事件处理失败作为 EvtFatal 发布到事件总线。
func ProvideBinding(in ModuleInput) (*Binding, error) {
	if in.Surface == nil {
		return nil, nil
	}
	var emitter *eventbus.Emitter
	if in.Bus != nil {
		var err error
		if emitter, err = in.Bus.Emitter(new(types.EvtFatal)); err != nil {
			return nil, err
		}
	}
	onError := func(err error) {
		log.Error("绑定失败", "error", err)
		in.Metrics.Fatal()
		if emitter != nil {
			_ = emitter.Emit(types.EvtFatal{BaseEvent: types.NewBaseEvent(types.EventTypeFatal), Err: err})
		}
	}

	var b *Binding
	if err := in.Loop.Do(func() {
		b = New(in.Doc, in.Presence, in.Surface, WithErrorHandler(onError))
	}); err != nil {
		return nil, err
	}
	in.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			_ = in.Loop.Do(b.Dispose)
			if emitter != nil {
				_ = emitter.Close()
			}
			return nil
		},
	})
	return b, nil
}

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("binding",
		fx.Provide(ProvideBinding),
	)
}
