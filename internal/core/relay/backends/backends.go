// Package backends 按配置选择中继后端
package backends

import (
	"context"
	"fmt"
	"strings"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/relay/memory"
	"github.com/dep2p/go-coedit/internal/core/relay/redisrelay"
	"github.com/dep2p/go-coedit/internal/core/relay/sse"
	"github.com/dep2p/go-coedit/internal/core/relay/wsrelay"
	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

var log = logger.Logger("relay/backends")

// Open 按配置创建中继，clk 为 nil 时使用系统时钟
func Open(ctx context.Context, cfg config.RelayConfig, clk clock.Clock) (interfaces.Relay, error) {
	retry := cfg.RetryInterval.Std()
	switch cfg.Backend {
	case config.RelayBackendSSE, "":
		return sse.New(cfg.URL, sse.WithRetryInterval(retry), sse.WithClock(clk)), nil
	case config.RelayBackendWebSocket:
		return wsrelay.New(cfg.URL, wsrelay.WithRetryInterval(retry)), nil
	case config.RelayBackendRedis:
		return redisrelay.Dial(ctx, strings.TrimPrefix(cfg.URL, "redis://"))
	case config.RelayBackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown relay backend %q", cfg.Backend)
	}
}

// Params 依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Clock      clock.Clock    `optional:"true"`
}

// ProvideRelay 按统一配置创建中继，未提供配置时使用默认配置
func ProvideRelay(p Params) (interfaces.Relay, error) {
	cfg := config.DefaultRelayConfig()
	if p.UnifiedCfg != nil {
		cfg = p.UnifiedCfg.Relay
	}
	r, err := Open(context.Background(), cfg, p.Clock)
	if err != nil {
		return nil, err
	}
	log.Info("中继已创建", "backend", cfg.Backend, "url", cfg.URL)
	return r, nil
}

// Module 返回 Fx 模块
//
// 中继的关闭由 relay.Module 的发布队列负责。
func Module() fx.Option {
	return fx.Module("relay/backends",
		fx.Provide(ProvideRelay),
	)
}
