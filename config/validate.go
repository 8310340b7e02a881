package config

import (
	"errors"
	"fmt"
)

// ValidateAll 验证整个配置的有效性
//
// 这是 Config.Validate() 的别名，提供更明确的语义。
func ValidateAll(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 随机区间上下界颠倒 -> 交换
//   - 刷新间隔不小于过期时间 -> 取过期时间的一半
//   - 空前缀或空通道名 -> 使用默认值
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	if c.Signaling.AnnounceMax < c.Signaling.AnnounceMin {
		c.Signaling.AnnounceMin, c.Signaling.AnnounceMax = c.Signaling.AnnounceMax, c.Signaling.AnnounceMin
	}
	if c.Sync.HeartbeatMax < c.Sync.HeartbeatMin {
		c.Sync.HeartbeatMin, c.Sync.HeartbeatMax = c.Sync.HeartbeatMax, c.Sync.HeartbeatMin
	}
	if c.Presence.OutdatedTimeout > 0 && c.Presence.RenewInterval >= c.Presence.OutdatedTimeout {
		c.Presence.RenewInterval = c.Presence.OutdatedTimeout / 2
	}
	if c.Relay.Prefix == "" {
		c.Relay.Prefix = DefaultRelayConfig().Prefix
	}
	if c.Signaling.ChannelLabel == "" {
		c.Signaling.ChannelLabel = DefaultSignalingConfig().ChannelLabel
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed after fixes: %w", err)
	}
	return c, nil
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}
