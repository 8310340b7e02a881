package coedit

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/binding"
	"github.com/dep2p/go-coedit/internal/core/channel"
	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/editor"
	"github.com/dep2p/go-coedit/internal/core/eventbus"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/ice"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/internal/core/relay/backends"
	"github.com/dep2p/go-coedit/internal/core/signaling"
	"github.com/dep2p/go-coedit/internal/core/transport"
	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

var fxLogger = logger.Logger("coedit/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 基础：Config → EventLoop → EventBus → Metrics
//  2. 复制状态：Document → Presence
//  3. 网络：Relay → Outbox → ICE → Transport
//  4. 会话：Channel → Signaling → Binding
func buildFxApp(cfg *config.Config, peer types.PeerID, o *options, s *Session) *fx.App {
	var modules []fx.Option

	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置与身份
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.Supply(cfg),
		fx.Supply(peer),
	)
	if o.clock != nil {
		clk := o.clock
		modules = append(modules, fx.Provide(func() clock.Clock { return clk }))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 基础模块
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		eventloop.Module(),
		eventbus.Module(),
		metrics.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 3. 复制状态
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		document.Module(),
		presence.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 中继（用户提供优先）
	// ════════════════════════════════════════════════════════════════════════
	if o.relay != nil {
		r := o.relay
		fxLogger.Debug("使用外部中继")
		modules = append(modules, fx.Provide(func() interfaces.Relay { return r }))
	} else {
		modules = append(modules, backends.Module())
	}
	modules = append(modules, relay.Module())

	// ════════════════════════════════════════════════════════════════════════
	// 5. ICE 与连接工厂
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, ice.Module())
	if o.transport != nil {
		t := o.transport
		fxLogger.Debug("使用外部连接工厂")
		modules = append(modules, fx.Provide(func() interfaces.TransportFactory { return t }))
	} else {
		modules = append(modules, transport.Module())
		if o.loopback {
			modules = append(modules, transport.Loopback())
		}
	}

	// ════════════════════════════════════════════════════════════════════════
	// 6. 数据通道与信令
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		channel.Module(),
		fx.Provide(func(m *channel.Manager) signaling.Handler { return m }),
		signaling.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 7. 编辑表面与绑定
	// ════════════════════════════════════════════════════════════════════════
	surface := o.surface
	if surface == nil {
		surface = editor.NewBuffer("")
	}
	modules = append(modules,
		fx.Provide(func() interfaces.Surface { return surface }),
		binding.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 8. 用户自定义 Fx 选项
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 9. Session 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectSessionComponents(s)))

	// ════════════════════════════════════════════════════════════════════════
	// 10. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		// 禁用 Fx 日志输出（避免干扰用户日志）
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}),
	)

	return fx.New(modules...)
}

// sessionInjectParams Session 注入参数
type sessionInjectParams struct {
	fx.In

	Loop     *eventloop.Loop
	Bus      *eventbus.Bus
	Doc      *document.Doc
	Presence *presence.Store
	Channels *channel.Manager
	Engine   *signaling.Engine
	Surface  interfaces.Surface
	Binding  *binding.Binding

	Metrics *metrics.Metrics `optional:"true"`
}

// injectSessionComponents 创建 Session 组件注入函数
func injectSessionComponents(s *Session) interface{} {
	return func(p sessionInjectParams) {
		s.loop = p.Loop
		s.bus = p.Bus
		s.doc = p.Doc
		s.presence = p.Presence
		s.channels = p.Channels
		s.engine = p.Engine
		s.surface = p.Surface
		s.binding = p.Binding
		s.metrics = p.Metrics
	}
}
