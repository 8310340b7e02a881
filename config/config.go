// Package config 提供统一的配置管理
//
// 本包采用混合配置模式：
//   - 主 Config 结构体嵌入所有子配置
//   - 每个子配置在独立文件中定义，带 DefaultXxxConfig 与 Validate
//   - 支持从 JSON 加载和保存配置
//
// 使用示例：
//
//	// 创建默认配置
//	cfg := config.NewConfig()
//	cfg.Room = "demo"
//	cfg.Relay = cfg.Relay.WithBackend(config.RelayBackendWebSocket).WithURL("ws://localhost:8080/ws")
//
//	// 从文件加载
//	cfg, err := config.LoadFile("coedit.json")
package config

import "errors"

// Config 是一个协同编辑会话的完整配置
//
// 配置按照功能模块组织：
//   - Identity: 本节点标识与显示信息
//   - Relay: 信令中继
//   - Signaling: 发现与协商
//   - ICE: STUN 服务器
//   - Sync: 数据通道同步心跳
//   - Presence: 光标/选区状态
//   - Metrics: 指标
type Config struct {
	// Room 房间名，同一房间的节点互相发现
	Room string `json:"room"`

	// Identity 身份配置
	Identity IdentityConfig `json:"identity"`

	// Relay 中继配置
	Relay RelayConfig `json:"relay"`

	// Signaling 信令配置
	Signaling SignalingConfig `json:"signaling"`

	// ICE STUN 服务器配置
	ICE ICEConfig `json:"ice"`

	// Sync 同步心跳配置
	Sync SyncConfig `json:"sync"`

	// Presence 在线状态配置
	Presence PresenceConfig `json:"presence"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`
}

// NewConfig 创建默认配置
//
// 返回的配置沿用各组件的默认值，Room 需要调用方设置。
func NewConfig() *Config {
	return &Config{
		Identity:  DefaultIdentityConfig(),
		Relay:     DefaultRelayConfig(),
		Signaling: DefaultSignalingConfig(),
		ICE:       DefaultICEConfig(),
		Sync:      DefaultSyncConfig(),
		Presence:  DefaultPresenceConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 验证配置的有效性
//
// 检查所有子配置，返回遇到的第一个错误。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if err := c.Identity.Validate(); err != nil {
		return err
	}
	if err := c.Relay.Validate(); err != nil {
		return err
	}
	if err := c.Signaling.Validate(); err != nil {
		return err
	}
	if err := c.ICE.Validate(); err != nil {
		return err
	}
	if err := c.Sync.Validate(); err != nil {
		return err
	}
	if err := c.Presence.Validate(); err != nil {
		return err
	}
	return c.Metrics.Validate()
}
