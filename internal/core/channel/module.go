package channel

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/eventbus"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/pkg/types"
)

// ============================================================================
//                              模块输入依赖
// ============================================================================

// ModuleInput 定义模块输入依赖
type ModuleInput struct {
	fx.In

	Loop     *eventloop.Loop
	Doc      *document.Doc
	Presence *presence.Store

	UnifiedCfg *config.Config   `optional:"true"`
	Bus        *eventbus.Bus    `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// ConfigFromUnified 从统一配置创建通道配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		HeartbeatMin: cfg.Sync.HeartbeatMin.Std(),
		HeartbeatMax: cfg.Sync.HeartbeatMax.Std(),
	}
}

// ProvideManager 创建通道管理器
//
// 应用远端更新时出现的非解码错误作为 EvtFatal 发布到事件总线。
func ProvideManager(in ModuleInput) (*Manager, error) {
	var emitter *eventbus.Emitter
	if in.Bus != nil {
		var err error
		if emitter, err = in.Bus.Emitter(new(types.EvtFatal)); err != nil {
			return nil, err
		}
	}
	onError := func(err error) {
		in.Metrics.Fatal()
		if emitter != nil {
			_ = emitter.Emit(types.EvtFatal{BaseEvent: types.NewBaseEvent(types.EventTypeFatal), Err: err})
		}
	}

	var mgr *Manager
	err := in.Loop.Do(func() {
		mgr = NewManager(ConfigFromUnified(in.UnifiedCfg), in.Loop, in.Doc, in.Presence,
			WithMetrics(in.Metrics),
			WithErrorHandler(onError),
		)
	})
	if err != nil {
		return nil, err
	}
	return mgr, nil
}

// ============================================================================
//                              模块定义
// ============================================================================

// Module 返回 fx 模块配置
func Module() fx.Option {
	return fx.Module("channel",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

type lifecycleInput struct {
	fx.In

	LC      fx.Lifecycle
	Loop    *eventloop.Loop
	Manager *Manager
}

func registerLifecycle(in lifecycleInput) {
	in.LC.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			log.Info("通道管理器停止")
			_ = in.Loop.Do(in.Manager.Close)
			return nil
		},
	})
}
