package coedit

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-coedit/internal/core/channel"
	"github.com/dep2p/go-coedit/internal/core/signaling"
	"github.com/dep2p/go-coedit/pkg/types"
)

// PeerInfo 对端连接信息
type PeerInfo = signaling.PeerInfo

// ChannelInfo 数据通道信息
type ChannelInfo = channel.Info

// User 房间内一个副本的 presence 摘要
type User struct {
	ClientID uint64
	PeerID   types.PeerID
	Name     string
	Color    string
	Local    bool
}

// Peers 返回所有对端连接记录
func (s *Session) Peers() ([]PeerInfo, error) {
	var peers []PeerInfo
	err := s.do(func() {
		peers = s.engine.PeersLocked()
	})
	return peers, err
}

// Channels 返回已打开的数据通道
func (s *Session) Channels() ([]ChannelInfo, error) {
	var infos []ChannelInfo
	err := s.do(func() {
		infos = s.channels.ChannelsLocked()
	})
	return infos, err
}

// Users 返回 presence 中的全部用户，按 ClientID 排序
func (s *Session) Users() ([]User, error) {
	var users []User
	err := s.do(func() {
		self := s.presence.ClientID()
		for id, st := range s.presence.States() {
			users = append(users, User{
				ClientID: uint64(id),
				PeerID:   st.PeerID,
				Name:     st.Name,
				Color:    st.Color,
				Local:    id == self,
			})
		}
	})
	sort.Slice(users, func(i, j int) bool { return users[i].ClientID < users[j].ClientID })
	return users, err
}

// Metrics 返回指标注册表，未启用指标时返回 nil
func (s *Session) Metrics() *prometheus.Registry {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Registry()
}
