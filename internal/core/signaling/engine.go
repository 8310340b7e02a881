package signaling

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/dep2p/go-coedit/internal/core/eventbus"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/ice"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

var log = logger.Logger("signaling")

// Handler 接收已打开的数据通道
//
// 两个方法都在事件循环上调用。
type Handler interface {
	// OnChannelOpen 数据通道已打开，返回该通道的消息入口
	OnChannelOpen(peer types.PeerID, dc interfaces.DataChannel) (onMessage func([]byte))
	// OnPeerClosed 已打开过通道的连接被关闭
	OnPeerClosed(peer types.PeerID, reason string)
}

// Params 引擎依赖
type Params struct {
	Config    Config
	Loop      *eventloop.Loop
	Relay     interfaces.Relay
	Outbox    *relay.Outbox
	Transport interfaces.TransportFactory
	ICE       *ice.Pool
	Handler   Handler

	// 可选
	Bus     *eventbus.Bus
	Metrics *metrics.Metrics
}

// Engine 信令引擎
type Engine struct {
	cfg       Config
	loop      *eventloop.Loop
	relay     interfaces.Relay
	outbox    *relay.Outbox
	transport interfaces.TransportFactory
	pool      *ice.Pool
	handler   Handler
	metrics   *metrics.Metrics

	emitConnected    *eventbus.Emitter
	emitDisconnected *eventbus.Emitter

	// 以下字段只在事件循环上访问
	records  map[types.PeerID]*record
	pending  *pendingCandidates
	announce *eventloop.Timer
	closed   bool

	startOnce sync.Once
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New 创建信令引擎
func New(p Params) (*Engine, error) {
	if p.Loop == nil || p.Relay == nil || p.Outbox == nil || p.Transport == nil || p.ICE == nil || p.Handler == nil {
		return nil, errors.New("signaling: missing dependency")
	}
	if err := p.Config.PeerID.Validate(); err != nil {
		return nil, fmt.Errorf("signaling: %w", err)
	}
	if p.Config.Addresses.Room == "" || p.Config.Addresses.Reply == "" {
		return nil, fmt.Errorf("signaling: %w", relay.ErrEmptyAddress)
	}
	p.Config.applyDefaults()

	pending, err := newPendingCandidates(p.Loop, p.Config.PendingTTL, p.Config.PendingMaxPeers, p.Metrics)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       p.Config,
		loop:      p.Loop,
		relay:     p.Relay,
		outbox:    p.Outbox,
		transport: p.Transport,
		pool:      p.ICE,
		handler:   p.Handler,
		metrics:   p.Metrics,
		records:   make(map[types.PeerID]*record),
		pending:   pending,
	}

	if p.Bus != nil {
		if e.emitConnected, err = p.Bus.Emitter(new(types.EvtPeerConnected)); err != nil {
			return nil, err
		}
		if e.emitDisconnected, err = p.Bus.Emitter(new(types.EvtPeerDisconnected)); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ID 返回本节点标识
func (e *Engine) ID() types.PeerID {
	return e.cfg.PeerID
}

// Addresses 返回中继地址
func (e *Engine) Addresses() relay.Addresses {
	return e.cfg.Addresses
}

// ============================================================================
//                              启动与关闭
// ============================================================================

// Start 订阅房间与回复地址并开始周期性 Announce
func (e *Engine) Start(ctx context.Context) error {
	err := ErrAlreadyStarted
	e.startOnce.Do(func() {
		err = e.start(ctx)
	})
	return err
}

func (e *Engine) start(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(context.Background())

	room, err := e.relay.Subscribe(subCtx, e.cfg.Addresses.Room)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe room: %w", err)
	}
	reply, err := e.relay.Subscribe(subCtx, e.cfg.Addresses.Reply)
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe reply: %w", err)
	}
	if err := ctx.Err(); err != nil {
		cancel()
		return err
	}

	e.cancel = cancel
	e.wg.Add(2)
	go e.pump(room, e.HandleRoomMessage)
	go e.pump(reply, e.HandleReplyMessage)

	log.Info("信令已启动", "peer", e.cfg.PeerID, "room", e.cfg.Addresses.Room, "reply", e.cfg.Addresses.Reply)
	return e.loop.Post(e.announceTick)
}

// pump 把中继消息转交到事件循环
func (e *Engine) pump(ch <-chan []byte, handle func([]byte)) {
	defer e.wg.Done()
	for data := range ch {
		data := data
		if err := e.loop.Post(func() { handle(data) }); err != nil {
			return
		}
	}
}

// Close 关闭所有连接并停止订阅
func (e *Engine) Close() error {
	err := e.loop.Do(func() {
		if e.closed {
			return
		}
		e.closed = true
		e.announce.Stop()
		for _, rec := range e.records {
			e.closeRecord(rec, "session closed")
		}
		e.pending.purge()
	})
	if errors.Is(err, eventloop.ErrClosed) {
		err = nil
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	if e.emitConnected != nil {
		_ = e.emitConnected.Close()
		_ = e.emitDisconnected.Close()
	}
	return err
}

// Peers 返回连接记录快照，不能在事件循环上调用
func (e *Engine) Peers() []PeerInfo {
	var out []PeerInfo
	_ = e.loop.Do(func() {
		out = e.PeersLocked()
	})
	return out
}

// PeersLocked 在事件循环上返回连接记录快照
func (e *Engine) PeersLocked() []PeerInfo {
	out := make([]PeerInfo, 0, len(e.records))
	for _, rec := range e.records {
		out = append(out, rec.info())
	}
	return out
}

// ============================================================================
//                              发送
// ============================================================================

func (e *Engine) announceTick() {
	if e.closed {
		return
	}
	e.publish(e.cfg.Addresses.Room, &Message{})
	e.announce = e.loop.AfterFunc(eventloop.Jitter(e.cfg.AnnounceMin, e.cfg.AnnounceMax), e.announceTick)
}

// publish 填充身份字段后入队
func (e *Engine) publish(address string, msg *Message) {
	msg.ClientID = e.cfg.PeerID
	msg.ReplyURL = e.cfg.Addresses.Reply
	data, err := msg.Encode()
	if err != nil {
		log.Error("编码信令失败", "kind", msg.Kind(), "err", err)
		return
	}
	if !e.outbox.Publish(address, data) {
		log.Debug("信令未入队", "kind", msg.Kind(), "address", address)
	}
}

// ============================================================================
//                              接收
// ============================================================================

// decode 解析并过滤自身消息
func (e *Engine) decode(data []byte) *Message {
	msg, err := DecodeMessage(data)
	if err != nil {
		log.Debug("丢弃信令", "err", err)
		e.metrics.SignalingMessage("unknown", metrics.ResultMalformed)
		return nil
	}
	if msg.ClientID == e.cfg.PeerID {
		e.metrics.SignalingMessage(msg.Kind().String(), metrics.ResultSelf)
		return nil
	}
	return msg
}

// HandleRoomMessage 处理房间地址上的 Announce，在事件循环上调用
func (e *Engine) HandleRoomMessage(data []byte) {
	if e.closed {
		return
	}
	msg := e.decode(data)
	if msg == nil {
		return
	}
	if _, ok := e.records[msg.ClientID]; ok {
		e.metrics.SignalingMessage(KindAnnounce.String(), metrics.ResultDuplicate)
		return
	}
	e.metrics.SignalingMessage(KindAnnounce.String(), metrics.ResultHandled)
	e.offer(msg.ClientID, msg.ReplyURL)
}

// HandleReplyMessage 处理回复地址上的 Offer/ICE/Answer，在事件循环上调用
//
// 同一消息中的字段依次处理：offer、ice、answer。
func (e *Engine) HandleReplyMessage(data []byte) {
	if e.closed {
		return
	}
	msg := e.decode(data)
	if msg == nil {
		return
	}
	if msg.Offer != nil {
		e.handleOffer(msg)
	}
	if msg.ICE != nil {
		e.handleCandidate(msg)
	}
	if msg.Answer != nil {
		e.handleAnswer(msg)
	}
}

func (e *Engine) handleOffer(msg *Message) {
	if _, ok := e.records[msg.ClientID]; ok {
		e.metrics.SignalingMessage(KindOffer.String(), metrics.ResultDuplicate)
		return
	}
	e.metrics.SignalingMessage(KindOffer.String(), metrics.ResultHandled)
	e.answer(msg.ClientID, msg.ReplyURL, *msg.Offer)
}

func (e *Engine) handleCandidate(msg *Message) {
	if rec, ok := e.records[msg.ClientID]; ok {
		e.metrics.SignalingMessage(KindICE.String(), metrics.ResultHandled)
		rec.addCandidate(*msg.ICE)
		return
	}
	e.metrics.SignalingMessage(KindICE.String(), metrics.ResultBuffered)
	e.pending.add(msg.ClientID, *msg.ICE)
}

func (e *Engine) handleAnswer(msg *Message) {
	rec, ok := e.records[msg.ClientID]
	if !ok || rec.role != RoleInitiator {
		e.metrics.SignalingMessage(KindAnswer.String(), metrics.ResultUnmatched)
		return
	}
	if rec.remoteSet {
		e.metrics.SignalingMessage(KindAnswer.String(), metrics.ResultDuplicate)
		return
	}
	e.metrics.SignalingMessage(KindAnswer.String(), metrics.ResultHandled)
	if err := rec.setRemote(*msg.Answer); err != nil {
		log.Warn("应用 answer 失败", "peer", rec.peer, "err", err)
		e.closeRecord(rec, "answer rejected")
		return
	}
	log.Debug("协商完成", "peer", rec.peer)
}

// ============================================================================
//                              协商
// ============================================================================

// newRecord 创建连接记录、挂接回调并冲刷暂存候选
func (e *Engine) newRecord(peer types.PeerID, replyTo string, role Role) (*record, error) {
	pc, err := e.transport.NewPeerConnection(e.pool.Pick(e.cfg.ICEServersPerConn))
	if err != nil {
		return nil, err
	}
	rec := &record{
		peer:    peer,
		replyTo: replyTo,
		role:    role,
		state:   types.PeerStateNegotiating,
		since:   e.loop.Clock().Now(),
		pc:      pc,
	}
	e.records[peer] = rec
	e.metrics.PeerState("", rec.state.String())
	log.Debug("创建连接记录", "peer", peer, "role", role)

	pc.OnICECandidate(func(c *webrtc.ICECandidateInit) {
		if c == nil {
			return
		}
		cand := *c
		_ = e.loop.Post(func() {
			if e.current(rec) {
				e.publish(rec.replyTo, &Message{ICE: &cand})
			}
		})
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		_ = e.loop.Post(func() {
			if !e.current(rec) {
				return
			}
			switch s {
			case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
				e.closeRecord(rec, s.String())
			case webrtc.PeerConnectionStateConnected:
				log.Debug("传输已连通", "peer", rec.peer)
			}
		})
	})

	if e.cfg.NegotiationTimeout > 0 {
		rec.timeout = e.loop.AfterFunc(e.cfg.NegotiationTimeout, func() {
			if e.current(rec) && rec.state == types.PeerStateNegotiating {
				log.Info("协商超时", "peer", rec.peer, "role", rec.role)
				e.closeRecord(rec, "negotiation timeout")
			}
		})
	}

	for _, c := range e.pending.take(peer) {
		rec.addCandidate(c)
	}
	return rec, nil
}

// offer 发起方：创建数据通道并发送 Offer
func (e *Engine) offer(peer types.PeerID, replyTo string) {
	rec, err := e.newRecord(peer, replyTo, RoleInitiator)
	if err != nil {
		log.Warn("创建连接失败", "peer", peer, "err", err)
		return
	}
	dc, err := rec.pc.CreateDataChannel(e.cfg.ChannelLabel)
	if err != nil {
		e.fail(rec, "create data channel", err)
		return
	}
	e.attachChannel(rec, dc)

	offer, err := rec.pc.CreateOffer()
	if err != nil {
		e.fail(rec, "create offer", err)
		return
	}
	e.publish(replyTo, &Message{Offer: &offer})
	if err := rec.pc.SetLocalDescription(offer); err != nil {
		e.fail(rec, "set local offer", err)
	}
}

// answer 应答方：应用 Offer 并回复 Answer
func (e *Engine) answer(peer types.PeerID, replyTo string, offer webrtc.SessionDescription) {
	rec, err := e.newRecord(peer, replyTo, RoleResponder)
	if err != nil {
		log.Warn("创建连接失败", "peer", peer, "err", err)
		return
	}
	rec.pc.OnDataChannel(func(dc interfaces.DataChannel) {
		_ = e.loop.Post(func() {
			if e.current(rec) && rec.dc == nil {
				e.attachChannel(rec, dc)
			}
		})
	})

	if err := rec.setRemote(offer); err != nil {
		e.fail(rec, "set remote offer", err)
		return
	}
	answer, err := rec.pc.CreateAnswer()
	if err != nil {
		e.fail(rec, "create answer", err)
		return
	}
	if err := rec.pc.SetLocalDescription(answer); err != nil {
		e.fail(rec, "set local answer", err)
		return
	}
	e.publish(replyTo, &Message{Answer: &answer})
}

// attachChannel 挂接数据通道回调
func (e *Engine) attachChannel(rec *record, dc interfaces.DataChannel) {
	rec.dc = dc
	dc.OnMessage(func(data []byte) {
		_ = e.loop.Post(func() {
			if e.current(rec) {
				rec.deliver(data)
			}
		})
	})
	dc.OnOpen(func() {
		_ = e.loop.Post(func() { e.channelOpen(rec) })
	})
	dc.OnClose(func() {
		_ = e.loop.Post(func() {
			if e.current(rec) {
				e.closeRecord(rec, "channel closed")
			}
		})
	})
	dc.OnError(func(err error) {
		_ = e.loop.Post(func() {
			if e.current(rec) {
				e.closeRecord(rec, "channel error: "+err.Error())
			}
		})
	})
	if dc.ReadyState() == webrtc.DataChannelStateOpen {
		e.channelOpen(rec)
	}
}

// channelOpen 通道打开：negotiating → connected，交给 Handler
func (e *Engine) channelOpen(rec *record) {
	if !e.current(rec) || rec.state != types.PeerStateNegotiating {
		return
	}
	e.transition(rec, types.PeerStateConnected)
	rec.timeout.Stop()
	log.Info("通道已打开", "peer", rec.peer, "role", rec.role)

	rec.sink = e.handler.OnChannelOpen(rec.peer, rec.dc)
	early := rec.early
	rec.early = nil
	for _, data := range early {
		rec.deliver(data)
	}

	if e.emitConnected != nil {
		_ = e.emitConnected.Emit(types.EvtPeerConnected{
			BaseEvent: types.NewBaseEvent(types.EventTypePeerConnected),
			Peer:      rec.peer,
		})
	}
}

func (e *Engine) fail(rec *record, step string, err error) {
	log.Warn("协商失败", "peer", rec.peer, "step", step, "err", err)
	e.closeRecord(rec, step+" failed")
}

// current 判断记录仍是该节点的有效记录
func (e *Engine) current(rec *record) bool {
	return e.records[rec.peer] == rec && rec.state != types.PeerStateClosed
}

func (e *Engine) transition(rec *record, next types.PeerState) {
	if !rec.state.CanTransitionTo(next) {
		return
	}
	e.metrics.PeerState(rec.state.String(), next.String())
	rec.state = next
}

// closeRecord 迁移到 closed 并移除记录，不重试
func (e *Engine) closeRecord(rec *record, reason string) {
	if rec.state == types.PeerStateClosed {
		return
	}
	wasConnected := rec.state == types.PeerStateConnected
	e.transition(rec, types.PeerStateClosed)
	e.metrics.PeerState(types.PeerStateClosed.String(), "")
	rec.timeout.Stop()
	if e.records[rec.peer] == rec {
		delete(e.records, rec.peer)
	}
	if rec.role == RoleResponder {
		e.pending.drop(rec.peer)
	}
	rec.sink = nil
	rec.early = nil
	log.Info("连接已关闭", "peer", rec.peer, "reason", reason)

	// pion 的 Close 会等待内部 goroutine，不能阻塞事件循环
	pc := rec.pc
	go func() {
		if err := pc.Close(); err != nil {
			log.Debug("关闭连接出错", "peer", rec.peer, "err", err)
		}
	}()

	if wasConnected {
		e.handler.OnPeerClosed(rec.peer, reason)
		if e.emitDisconnected != nil {
			_ = e.emitDisconnected.Emit(types.EvtPeerDisconnected{
				BaseEvent: types.NewBaseEvent(types.EventTypePeerDisconnected),
				Peer:      rec.peer,
				Reason:    reason,
			})
		}
	}
}
