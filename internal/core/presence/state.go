package presence

import (
	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/pkg/types"
)

// RelativeSelection 以相对位置表示的选区
type RelativeSelection struct {
	Anchor document.RelativePosition `json:"anchor"`
	Head   document.RelativePosition `json:"head"`
}

// State 一个副本的 presence 条目
type State struct {
	PeerID    types.PeerID       `json:"peerId"`
	Name      string             `json:"name,omitempty"`
	Color     string             `json:"color,omitempty"`
	Selection *RelativeSelection `json:"selection,omitempty"`
}

// Clone 深拷贝
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := *s
	if s.Selection != nil {
		sel := RelativeSelection{Anchor: clonePos(s.Selection.Anchor), Head: clonePos(s.Selection.Head)}
		c.Selection = &sel
	}
	return &c
}

// Equal 比较两个条目内容
func (s *State) Equal(o *State) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.PeerID != o.PeerID || s.Name != o.Name || s.Color != o.Color {
		return false
	}
	if s.Selection == nil || o.Selection == nil {
		return s.Selection == o.Selection
	}
	return samePos(s.Selection.Anchor, o.Selection.Anchor) && samePos(s.Selection.Head, o.Selection.Head)
}

func clonePos(p document.RelativePosition) document.RelativePosition {
	if p.Item == nil {
		return p
	}
	id := *p.Item
	return document.RelativePosition{Item: &id}
}

func samePos(a, b document.RelativePosition) bool {
	if a.Item == nil || b.Item == nil {
		return a.Item == b.Item
	}
	return *a.Item == *b.Item
}

// Change 一次 awareness 变更
type Change struct {
	Added   []document.ClientID
	Updated []document.ClientID
	Removed []document.ClientID
	Origin  types.Origin
}

// Empty 是否没有任何条目变化
func (c Change) Empty() bool {
	return len(c.Added) == 0 && len(c.Updated) == 0 && len(c.Removed) == 0
}

// Clients 返回所有涉及的 client
func (c Change) Clients() []document.ClientID {
	out := make([]document.ClientID, 0, len(c.Added)+len(c.Updated)+len(c.Removed))
	out = append(out, c.Added...)
	out = append(out, c.Updated...)
	return append(out, c.Removed...)
}
