package config

import (
	"fmt"

	"github.com/dep2p/go-coedit/internal/util/colorutil"
	"github.com/dep2p/go-coedit/pkg/types"
)

// IdentityConfig 身份配置
//
// 所有字段都可以为空：
//   - PeerID 为空时启动会话时随机生成
//   - DisplayName 为空时使用 PeerID 的前 4 个字符
//   - Color 为空时随机生成
type IdentityConfig struct {
	// PeerID 节点标识（大写字母与数字，最多 10 位）
	PeerID string `json:"peer_id,omitempty"`

	// DisplayName 显示名
	DisplayName string `json:"display_name,omitempty"`

	// Color 光标颜色，#rrggbb
	Color string `json:"color,omitempty"`
}

// DefaultIdentityConfig 返回默认身份配置
func DefaultIdentityConfig() IdentityConfig {
	return IdentityConfig{}
}

// Validate 验证身份配置
func (c IdentityConfig) Validate() error {
	if c.PeerID != "" {
		if err := types.PeerID(c.PeerID).Validate(); err != nil {
			return fmt.Errorf("identity.peer_id: %w", err)
		}
	}
	if c.Color != "" && !colorutil.ValidHexColor(c.Color) {
		return fmt.Errorf("identity.color: %q is not #rrggbb", c.Color)
	}
	return nil
}

// WithPeerID 设置节点标识
func (c IdentityConfig) WithPeerID(id string) IdentityConfig {
	c.PeerID = id
	return c
}

// WithDisplayName 设置显示名
func (c IdentityConfig) WithDisplayName(name string) IdentityConfig {
	c.DisplayName = name
	return c
}

// WithColor 设置光标颜色
func (c IdentityConfig) WithColor(color string) IdentityConfig {
	c.Color = color
	return c
}
