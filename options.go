package coedit

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"go.uber.org/fx"

	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/util/colorutil"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

// Option 会话配置选项
type Option func(*options) error

// options 内部选项结构
type options struct {
	config *config.Config

	room        string
	peerID      types.PeerID
	displayName string
	color       string

	// 以下依赖未设置时按配置创建
	relay     interfaces.Relay
	transport interfaces.TransportFactory
	surface   interfaces.Surface
	clock     clock.Clock

	loopback      bool
	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{config: config.NewConfig()}
}

// apply 把零散选项合并进配置
func (o *options) apply() (*config.Config, error) {
	cfg := config.CloneConfig(o.config)
	if o.room != "" {
		cfg.Room = o.room
	}
	if o.peerID != "" {
		cfg.Identity = cfg.Identity.WithPeerID(string(o.peerID))
	}
	if o.displayName != "" {
		cfg.Identity = cfg.Identity.WithDisplayName(o.displayName)
	}
	if o.color != "" {
		cfg.Identity = cfg.Identity.WithColor(o.color)
	}
	if cfg.Room == "" {
		return nil, ErrNoRoom
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ============================================================================
//                              配置
// ============================================================================

// WithConfig 使用完整配置，其余选项在其基础上覆盖
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		o.config = cfg
		return nil
	}
}

// WithRoom 设置房间名
func WithRoom(room string) Option {
	return func(o *options) error {
		o.room = room
		return nil
	}
}

// ============================================================================
//                              身份
// ============================================================================

// WithPeerID 指定节点标识，默认随机生成
func WithPeerID(id types.PeerID) Option {
	return func(o *options) error {
		if err := id.Validate(); err != nil {
			return err
		}
		o.peerID = id
		return nil
	}
}

// WithDisplayName 设置显示名，默认取节点标识前 4 个字符
func WithDisplayName(name string) Option {
	return func(o *options) error {
		o.displayName = name
		return nil
	}
}

// WithColor 设置光标颜色（#rrggbb），默认随机
func WithColor(color string) Option {
	return func(o *options) error {
		if !colorutil.ValidHexColor(color) {
			return ErrInvalidColor
		}
		o.color = color
		return nil
	}
}

// ============================================================================
//                              依赖注入
// ============================================================================

// WithRelay 使用给定中继，忽略配置中的后端
func WithRelay(r interfaces.Relay) Option {
	return func(o *options) error {
		o.relay = r
		return nil
	}
}

// WithTransport 使用给定连接工厂（测试中注入进程内网络）
func WithTransport(t interfaces.TransportFactory) Option {
	return func(o *options) error {
		o.transport = t
		return nil
	}
}

// WithLoopback 允许 pion 使用回环候选（同机多会话）
func WithLoopback() Option {
	return func(o *options) error {
		o.loopback = true
		return nil
	}
}

// WithSurface 绑定给定编辑表面，默认使用内存缓冲区
func WithSurface(s interfaces.Surface) Option {
	return func(o *options) error {
		o.surface = s
		return nil
	}
}

// WithClock 指定时钟（测试用 mock）
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithFxOptions 追加自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
