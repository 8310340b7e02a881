package types

import (
	"errors"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

// ============================================================================
//                              PeerID - 会话身份
// ============================================================================

// PeerID 会话级节点标识
//
// 在会话开始时生成一次，不会复用。既用作中继回复地址的一部分，
// 也用作 presence 状态中的归属标识。
type PeerID string

// peerIDLength 生成的 PeerID 长度
const peerIDLength = 10

// shortNameLength 默认显示名长度
const shortNameLength = 4

// ErrEmptyPeerID 空 PeerID
var ErrEmptyPeerID = errors.New("empty peer id")

// ErrInvalidPeerID PeerID 含有不能出现在中继地址中的字符
var ErrInvalidPeerID = errors.New("invalid peer id")

// maxPeerIDLength 外部指定 PeerID 的最大长度
const maxPeerIDLength = 64

// NewPeerID 生成随机 PeerID
//
// 由 uuid 的随机位转换为大写 base36，截取前 10 个字符。
func NewPeerID() PeerID {
	u := uuid.New()
	n := new(big.Int).SetBytes(u[:])
	s := strings.ToUpper(n.Text(36))
	if len(s) > peerIDLength {
		s = s[:peerIDLength]
	}
	return PeerID(s)
}

// String 返回字符串形式
func (id PeerID) String() string {
	return string(id)
}

// ShortName 返回默认显示名（前 4 个字符）
func (id PeerID) ShortName() string {
	s := string(id)
	if len(s) > shortNameLength {
		return s[:shortNameLength]
	}
	return s
}

// IsEmpty 检查是否为空
func (id PeerID) IsEmpty() bool {
	return id == ""
}

// Validate 校验 PeerID
//
// PeerID 直接拼进回复地址，只允许字母、数字、- 与 _。
func (id PeerID) Validate() error {
	if id.IsEmpty() {
		return ErrEmptyPeerID
	}
	if len(id) > maxPeerIDLength {
		return ErrInvalidPeerID
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ErrInvalidPeerID
		}
	}
	return nil
}
