package relay

import (
	"strings"

	"github.com/dep2p/go-coedit/pkg/types"
)

// DefaultPrefix 默认地址前缀
const DefaultPrefix = "coedit"

// Addresses 一个会话使用的中继地址
type Addresses struct {
	// Room 房间地址，所有节点在此广播 Announce
	Room string
	// Reply 本节点的回复地址，接收 Offer/Answer/Ice
	Reply string
}

// NewAddresses 按 <prefix>-room-<room> 与 <prefix>-reply-<peer> 生成地址
func NewAddresses(prefix, room string, peer types.PeerID) Addresses {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Addresses{
		Room:  RoomAddress(prefix, room),
		Reply: ReplyAddress(prefix, peer),
	}
}

// RoomAddress 房间地址
func RoomAddress(prefix, room string) string {
	return prefix + "-room-" + sanitize(room)
}

// ReplyAddress 节点回复地址
func ReplyAddress(prefix string, peer types.PeerID) string {
	return prefix + "-reply-" + sanitize(string(peer))
}

// sanitize 只保留 URL 路径段安全的字符
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, s)
}
