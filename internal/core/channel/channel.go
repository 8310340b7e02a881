package channel

import (
	"errors"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

// Channel 一条已打开的对端数据通道
type Channel struct {
	mgr      *Manager
	peer     types.PeerID
	dc       interfaces.DataChannel
	openedAt time.Time

	timer  *eventloop.Timer
	closed bool

	framesIn  uint64
	framesOut uint64
	dropped   uint64
}

// Info 通道诊断快照
type Info struct {
	Peer      types.PeerID
	Label     string
	State     webrtc.DataChannelState
	OpenedAt  time.Time
	FramesIn  uint64
	FramesOut uint64
	Dropped   uint64
}

func (c *Channel) info() Info {
	return Info{
		Peer:      c.peer,
		Label:     c.dc.Label(),
		State:     c.dc.ReadyState(),
		OpenedAt:  c.openedAt,
		FramesIn:  c.framesIn,
		FramesOut: c.framesOut,
		Dropped:   c.dropped,
	}
}

// Peer 返回对端标识
func (c *Channel) Peer() types.PeerID {
	return c.peer
}

// open 通道仍可发送
func (c *Channel) open() bool {
	return !c.closed && c.dc.ReadyState() == webrtc.DataChannelStateOpen
}

// heartbeat 发送 sync 并安排下一次；通道不再打开时停止
func (c *Channel) heartbeat() {
	if !c.open() {
		return
	}
	c.Send(SyncFrame{StateVector: c.mgr.doc.EncodeStateVector()})
	c.timer = c.mgr.loop.AfterFunc(eventloop.Jitter(c.mgr.cfg.HeartbeatMin, c.mgr.cfg.HeartbeatMax), c.heartbeat)
}

// Send 发送一帧，通道未打开时静默丢弃
func (c *Channel) Send(f Frame) {
	if !c.open() {
		return
	}
	text, err := EncodeFrame(f)
	if err != nil {
		log.Error("编码帧失败", "peer", c.peer, "type", f.Type(), "err", err)
		return
	}
	if err := c.dc.SendText(text); err != nil {
		log.Debug("发送失败", "peer", c.peer, "type", f.Type(), "err", err)
		return
	}
	c.framesOut++
	c.mgr.metrics.Frame("out", string(f.Type()), len(text))
}

// HandleMessage 处理一条入站文本帧，在事件循环上调用
//
// 坏帧与未知类型被丢弃，不影响通道。
func (c *Channel) HandleMessage(data []byte) {
	if c.closed {
		return
	}
	f, err := DecodeFrame(data)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, ErrUnknownFrameType) {
			reason = "unknown_type"
		}
		c.drop(reason, err)
		return
	}
	c.framesIn++
	c.mgr.metrics.Frame("in", string(f.Type()), len(data))

	switch f := f.(type) {
	case SyncFrame:
		update, err := c.mgr.doc.EncodeStateAsUpdate(f.StateVector)
		if err != nil {
			c.drop("malformed", err)
			return
		}
		c.Send(UpdateFrame{Update: update})
		c.Send(AwarenessFrame{Update: c.mgr.presence.EncodeUpdate(nil)})
	case UpdateFrame:
		if err := c.mgr.doc.ApplyUpdate(f.Update, types.OriginRemote); err != nil {
			c.applyFailed(err)
		}
	case AwarenessFrame:
		if err := c.mgr.presence.ApplyUpdate(f.Update, types.OriginRemote); err != nil {
			c.applyFailed(err)
		}
	default:
		c.drop("unknown_type", ErrUnknownFrameType)
	}
}

func (c *Channel) applyFailed(err error) {
	if isDecodeError(err) {
		c.drop("malformed", err)
		return
	}
	c.mgr.fail(c.peer, err)
}

func (c *Channel) drop(reason string, err error) {
	c.dropped++
	c.mgr.metrics.FrameDropped(reason)
	log.Debug("丢弃帧", "peer", c.peer, "reason", reason, "err", err)
}

// Close 停止心跳并移除对端的在线状态条目
//
// 数据通道本身由信令引擎随连接一起关闭。
func (c *Channel) Close(reason string) {
	if c.closed {
		return
	}
	c.closed = true
	c.timer.Stop()
	if cur, ok := c.mgr.channels[c.peer]; ok && cur == c {
		delete(c.mgr.channels, c.peer)
	}
	removed := c.mgr.presence.RemovePeer(c.peer, types.OriginRemote)
	log.Info("通道已关闭", "peer", c.peer, "reason", reason, "presence_removed", len(removed))
}
