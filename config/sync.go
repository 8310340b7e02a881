package config

import (
	"errors"
	"time"
)

// SyncConfig 数据通道同步配置
type SyncConfig struct {
	// HeartbeatMin/HeartbeatMax sync 帧的随机发送间隔
	HeartbeatMin Duration `json:"heartbeat_min"`
	HeartbeatMax Duration `json:"heartbeat_max"`
}

// DefaultSyncConfig 返回默认同步配置（5~15 秒）
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		HeartbeatMin: Duration(5 * time.Second),
		HeartbeatMax: Duration(15 * time.Second),
	}
}

// Validate 验证同步配置
func (c SyncConfig) Validate() error {
	if c.HeartbeatMin <= 0 {
		return errors.New("sync.heartbeat_min must be positive")
	}
	if c.HeartbeatMax < c.HeartbeatMin {
		return errors.New("sync.heartbeat_max must not be less than heartbeat_min")
	}
	return nil
}
