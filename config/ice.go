package config

import (
	"errors"
	"time"
)

// ICEConfig STUN 服务器配置
type ICEConfig struct {
	// Servers STUN 服务器列表（host:port 或 stun:host:port），为空时使用内置列表
	Servers []string `json:"servers,omitempty"`

	// ServersPerConnection 每条连接随机选取的服务器数（允许重复）
	ServersPerConnection int `json:"servers_per_connection"`

	// ProbeSTUN 启动时探测服务器，剔除不可达的条目
	ProbeSTUN bool `json:"probe_stun"`

	// ProbeTimeout 单个服务器的探测超时
	ProbeTimeout Duration `json:"probe_timeout"`
}

// DefaultICEConfig 返回默认 ICE 配置
func DefaultICEConfig() ICEConfig {
	return ICEConfig{
		ServersPerConnection: 20,
		ProbeSTUN:            false,
		ProbeTimeout:         Duration(3 * time.Second),
	}
}

// Validate 验证 ICE 配置
func (c ICEConfig) Validate() error {
	if c.ServersPerConnection <= 0 {
		return errors.New("ice.servers_per_connection must be positive")
	}
	if c.ProbeSTUN && c.ProbeTimeout <= 0 {
		return errors.New("ice.probe_timeout must be positive when probing")
	}
	return nil
}

// WithServers 设置服务器列表
func (c ICEConfig) WithServers(servers ...string) ICEConfig {
	c.Servers = append([]string(nil), servers...)
	return c
}
