package config

import (
	"errors"
	"time"
)

// PresenceConfig 在线状态配置
type PresenceConfig struct {
	// OutdatedTimeout 远端状态多久未刷新视为离线
	OutdatedTimeout Duration `json:"outdated_timeout"`

	// RenewInterval 本地状态的刷新间隔，必须小于 OutdatedTimeout
	RenewInterval Duration `json:"renew_interval"`
}

// DefaultPresenceConfig 返回默认配置（30 秒过期，15 秒刷新）
func DefaultPresenceConfig() PresenceConfig {
	return PresenceConfig{
		OutdatedTimeout: Duration(30 * time.Second),
		RenewInterval:   Duration(15 * time.Second),
	}
}

// Validate 验证在线状态配置
func (c PresenceConfig) Validate() error {
	if c.OutdatedTimeout <= 0 || c.RenewInterval <= 0 {
		return errors.New("presence timeouts must be positive")
	}
	if c.RenewInterval >= c.OutdatedTimeout {
		return errors.New("presence.renew_interval must be less than outdated_timeout")
	}
	return nil
}
