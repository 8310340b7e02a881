package config

import "net"

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enabled 启用会话指标
	Enabled bool `json:"enabled"`

	// ListenAddr 暴露 /metrics 的地址，为空时不启动 HTTP 服务（仅命令行使用）
	ListenAddr string `json:"listen_addr,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: true}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.ListenAddr == "" {
		return nil
	}
	_, _, err := net.SplitHostPort(c.ListenAddr)
	return err
}
