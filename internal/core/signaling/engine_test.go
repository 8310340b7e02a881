package signaling

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/internal/core/eventbus"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/ice"
	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/internal/core/relay/memory"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
	"github.com/dep2p/go-coedit/tests/mocks"
)

const (
	timeoutWait = 2 * time.Second
	tick        = 10 * time.Millisecond
)

// recordingHandler 记录通道打开与关闭
type recordingHandler struct {
	mu       sync.Mutex
	opened   []types.PeerID
	closed   []types.PeerID
	received map[types.PeerID][][]byte
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{received: make(map[types.PeerID][][]byte)}
}

func (h *recordingHandler) OnChannelOpen(peer types.PeerID, dc interfaces.DataChannel) func([]byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opened = append(h.opened, peer)
	return func(data []byte) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.received[peer] = append(h.received[peer], data)
	}
}

func (h *recordingHandler) OnPeerClosed(peer types.PeerID, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, peer)
}

func (h *recordingHandler) openedPeers() []types.PeerID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.PeerID(nil), h.opened...)
}

func (h *recordingHandler) closedPeers() []types.PeerID {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]types.PeerID(nil), h.closed...)
}

type testEngine struct {
	*Engine
	loop      *eventloop.Loop
	outbox    *relay.Outbox
	transport *mocks.MockTransport
	handler   *recordingHandler
	bus       *eventbus.Bus
}

func newTestEngine(t *testing.T, id types.PeerID, r interfaces.Relay, network *mocks.Network, clk clock.Clock) *testEngine {
	t.Helper()

	loop := eventloop.New(clk)
	outbox := relay.NewOutbox(r, relay.OutboxConfig{QueueSize: 64})
	pool, err := ice.NewPool(ice.DefaultServers)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.PeerID = id
	cfg.Addresses = relay.NewAddresses("test", "room", id)

	te := &testEngine{
		loop:      loop,
		outbox:    outbox,
		transport: network.Transport(string(id)),
		handler:   newRecordingHandler(),
		bus:       eventbus.NewBus(),
	}
	te.Engine, err = New(Params{
		Config:    cfg,
		Loop:      loop,
		Relay:     r,
		Outbox:    outbox,
		Transport: te.transport,
		ICE:       pool,
		Handler:   te.handler,
		Bus:       te.bus,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = te.Engine.Close()
		_ = outbox.Close()
		_ = loop.Close()
	})
	return te
}

func encode(t *testing.T, msg *Message) []byte {
	t.Helper()
	data, err := msg.Encode()
	require.NoError(t, err)
	return data
}

// remoteOffer 在网络中创建一个真实存在的远端发起方，返回其 offer
func remoteOffer(t *testing.T, network *mocks.Network, owner string) webrtc.SessionDescription {
	t.Helper()
	pc, err := network.Transport(owner).NewPeerConnection(nil)
	require.NoError(t, err)
	_, err = pc.CreateDataChannel("message")
	require.NoError(t, err)
	offer, err := pc.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))
	return offer
}

func (te *testEngine) peerCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, te.loop.Do(func() { n = len(te.records) }))
	return n
}

func (te *testEngine) pendingCount(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, te.loop.Do(func() { n = te.pending.len() }))
	return n
}

func (te *testEngine) handle(t *testing.T, reply bool, msg *Message) {
	t.Helper()
	data := encode(t, msg)
	require.NoError(t, te.loop.Do(func() {
		if reply {
			te.HandleReplyMessage(data)
		} else {
			te.HandleRoomMessage(data)
		}
	}))
}

func decodeAll(t *testing.T, payloads [][]byte) []*Message {
	t.Helper()
	out := make([]*Message, 0, len(payloads))
	for _, p := range payloads {
		msg, err := DecodeMessage(p)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

// ============================================================================
//                              自身过滤与去重
// ============================================================================

func TestEngine_IgnoresSelfMessages(t *testing.T) {
	network := mocks.NewNetwork()
	r := mocks.NewMockRelay()
	te := newTestEngine(t, "SELF", r, network, clock.NewMock())

	offer := remoteOffer(t, network, "OTHER")
	te.handle(t, false, &Message{ClientID: "SELF", ReplyURL: "test-reply-SELF"})
	te.handle(t, true, &Message{ClientID: "SELF", ReplyURL: "test-reply-SELF", Offer: &offer})
	te.handle(t, true, &Message{ClientID: "SELF", ReplyURL: "test-reply-SELF", ICE: &webrtc.ICECandidateInit{Candidate: "c"}})

	assert.Empty(t, te.transport.Connections())
	assert.Equal(t, 0, te.peerCount(t))
	assert.Equal(t, 0, te.pendingCount(t))

	assert.Empty(t, r.Published("test-reply-SELF"))
}

func TestEngine_DuplicateOffersCreateOneRecord(t *testing.T) {
	network := mocks.NewNetwork()
	r := mocks.NewMockRelay()
	te := newTestEngine(t, "LOCAL", r, network, clock.NewMock())

	offer := remoteOffer(t, network, "REMOTE")
	msg := &Message{ClientID: "REMOTE", ReplyURL: "test-reply-REMOTE", Offer: &offer}
	te.handle(t, true, msg)
	te.handle(t, true, msg)
	te.handle(t, false, &Message{ClientID: "REMOTE", ReplyURL: "test-reply-REMOTE"})

	assert.Len(t, te.transport.Connections(), 1)
	assert.Equal(t, 1, te.peerCount(t))

	// 只回复了一个 answer
	require.Eventually(t, func() bool {
		return len(r.Published("test-reply-REMOTE")) >= 1
	}, timeoutWait, tick)
	answers := 0
	for _, m := range decodeAll(t, r.Published("test-reply-REMOTE")) {
		if m.Answer != nil {
			answers++
			assert.True(t, strings.HasPrefix(m.Answer.SDP, "mock-answer:"))
		}
	}
	assert.Equal(t, 1, answers)
}

// ============================================================================
//                              发起方
// ============================================================================

func TestEngine_AnnounceStartsOffer(t *testing.T) {
	network := mocks.NewNetwork()
	r := mocks.NewMockRelay()
	te := newTestEngine(t, "LOCAL", r, network, clock.NewMock())

	te.handle(t, false, &Message{ClientID: "REMOTE", ReplyURL: "test-reply-REMOTE"})

	conns := te.transport.Connections()
	require.Len(t, conns, 1)
	assert.Len(t, conns[0].Servers, DefaultConfig().ICEServersPerConn)

	// offer 先于候选发出，候选逐个发送
	require.Eventually(t, func() bool {
		return len(r.Published("test-reply-REMOTE")) >= 2
	}, timeoutWait, tick)
	msgs := decodeAll(t, r.Published("test-reply-REMOTE"))
	require.NotNil(t, msgs[0].Offer)
	assert.Equal(t, types.PeerID("LOCAL"), msgs[0].ClientID)
	assert.Equal(t, "test-reply-LOCAL", msgs[0].ReplyURL)
	require.NotNil(t, msgs[1].ICE)

	peers := te.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, RoleInitiator, peers[0].Role)
	assert.Equal(t, types.PeerStateNegotiating, peers[0].State)
}

func TestEngine_UnmatchedAnswerIgnored(t *testing.T) {
	network := mocks.NewNetwork()
	te := newTestEngine(t, "LOCAL", mocks.NewMockRelay(), network, clock.NewMock())

	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "mock-answer:99"}
	te.handle(t, true, &Message{ClientID: "REMOTE", ReplyURL: "r", Answer: &answer})
	assert.Equal(t, 0, te.peerCount(t))
}

// ============================================================================
//                              候选暂存
// ============================================================================

func TestEngine_BufferedCandidatesFlushOnRecord(t *testing.T) {
	network := mocks.NewNetwork()
	te := newTestEngine(t, "LOCAL", mocks.NewMockRelay(), network, clock.NewMock())

	cand := webrtc.ICECandidateInit{Candidate: "candidate:early"}
	te.handle(t, true, &Message{ClientID: "REMOTE", ReplyURL: "test-reply-REMOTE", ICE: &cand})
	assert.Equal(t, 1, te.pendingCount(t))
	assert.Equal(t, 0, te.peerCount(t))

	offer := remoteOffer(t, network, "REMOTE")
	te.handle(t, true, &Message{ClientID: "REMOTE", ReplyURL: "test-reply-REMOTE", Offer: &offer})

	assert.Equal(t, 0, te.pendingCount(t))
	conns := te.transport.Connections()
	require.Len(t, conns, 1)
	assert.Equal(t, []webrtc.ICECandidateInit{cand}, conns[0].AppliedCandidates())
}

func TestEngine_CandidatesQueuedUntilAnswer(t *testing.T) {
	network := mocks.NewNetwork()
	te := newTestEngine(t, "LOCAL", mocks.NewMockRelay(), network, clock.NewMock())

	cand := webrtc.ICECandidateInit{Candidate: "candidate:before-answer"}
	te.handle(t, true, &Message{ClientID: "REMOTE", ReplyURL: "r", ICE: &cand})
	te.handle(t, false, &Message{ClientID: "REMOTE", ReplyURL: "r"})

	conns := te.transport.Connections()
	require.Len(t, conns, 1)
	assert.Empty(t, conns[0].AppliedCandidates(), "远端描述未设置前不应用候选")

	// 构造与本端 offer 配对的应答方
	offerSDP := "mock-offer:" + strconv.Itoa(conns[0].ID())
	responder, err := network.Transport("REMOTE").NewPeerConnection(nil)
	require.NoError(t, err)
	require.NoError(t, responder.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offerSDP}))
	answer, err := responder.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, responder.SetLocalDescription(answer))

	te.handle(t, true, &Message{ClientID: "REMOTE", ReplyURL: "r", Answer: &answer})
	assert.Equal(t, []webrtc.ICECandidateInit{cand}, conns[0].AppliedCandidates())
}

func TestEngine_PendingCandidatesExpire(t *testing.T) {
	clk := clock.NewMock()
	network := mocks.NewNetwork()
	te := newTestEngine(t, "LOCAL", mocks.NewMockRelay(), network, clk)

	te.handle(t, true, &Message{ClientID: "GHOST", ReplyURL: "r", ICE: &webrtc.ICECandidateInit{Candidate: "c1"}})
	clk.Add(10 * time.Second)
	te.handle(t, true, &Message{ClientID: "GHOST", ReplyURL: "r", ICE: &webrtc.ICECandidateInit{Candidate: "c2"}})
	require.Equal(t, 1, te.pendingCount(t))

	// 过期从第一个候选开始计时
	clk.Add(DefaultConfig().PendingTTL - 10*time.Second)
	require.Eventually(t, func() bool { return te.pendingCount(t) == 0 }, timeoutWait, tick)

	offer := remoteOffer(t, network, "GHOST")
	te.handle(t, true, &Message{ClientID: "GHOST", ReplyURL: "r", Offer: &offer})
	conns := te.transport.Connections()
	require.Len(t, conns, 1)
	assert.Empty(t, conns[0].AppliedCandidates())
}

// ============================================================================
//                              状态机
// ============================================================================

func TestEngine_NegotiationTimeout(t *testing.T) {
	clk := clock.NewMock()
	network := mocks.NewNetwork()
	te := newTestEngine(t, "LOCAL", mocks.NewMockRelay(), network, clk)

	te.handle(t, false, &Message{ClientID: "SILENT", ReplyURL: "r"})
	require.Equal(t, 1, te.peerCount(t))

	clk.Add(DefaultConfig().NegotiationTimeout)
	require.Eventually(t, func() bool { return te.peerCount(t) == 0 }, timeoutWait, tick)

	conns := te.transport.Connections()
	require.Len(t, conns, 1)
	require.Eventually(t, func() bool {
		return conns[0].ConnectionState() == webrtc.PeerConnectionStateClosed
	}, timeoutWait, tick)
	assert.Empty(t, te.handler.closedPeers(), "未打开通道的连接不通知 Handler")

	// 下一次 Announce 重新协商
	te.handle(t, false, &Message{ClientID: "SILENT", ReplyURL: "r"})
	assert.Equal(t, 1, te.peerCount(t))
	assert.Len(t, te.transport.Connections(), 2)
}

func TestEngine_TwoPeersConnectAndClose(t *testing.T) {
	network := mocks.NewNetwork()
	network.RequireCandidates = true
	r := memory.New()
	defer r.Close()

	a := newTestEngine(t, "AAAA", r, network, clock.NewMock())
	b := newTestEngine(t, "BBBB", r, network, clock.NewMock())

	sub, err := a.bus.Subscribe(new(types.EvtPeerConnected))
	require.NoError(t, err)
	defer sub.Close()

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	require.Eventually(t, func() bool { return a.outbox.Stats().Published >= 1 }, timeoutWait, tick)
	require.NoError(t, b.Start(ctx))
	assert.ErrorIs(t, b.Start(ctx), ErrAlreadyStarted)

	require.Eventually(t, func() bool {
		return len(a.handler.openedPeers()) == 1 && len(b.handler.openedPeers()) == 1
	}, timeoutWait, tick)
	assert.Equal(t, []types.PeerID{"BBBB"}, a.handler.openedPeers())
	assert.Equal(t, []types.PeerID{"AAAA"}, b.handler.openedPeers())

	select {
	case evt := <-sub.Out():
		assert.Equal(t, types.PeerID("BBBB"), evt.(types.EvtPeerConnected).Peer)
	case <-time.After(timeoutWait):
		t.Fatal("未收到 EvtPeerConnected")
	}

	peers := a.Peers()
	require.Len(t, peers, 1)
	assert.Equal(t, types.PeerStateConnected, peers[0].State)
	assert.Equal(t, RoleInitiator, peers[0].Role)
	assert.Equal(t, RoleResponder, b.Peers()[0].Role)

	// 通道消息到达 Handler 返回的入口
	var sendErr error
	require.NoError(t, a.loop.Do(func() {
		sendErr = a.records["BBBB"].dc.SendText("ping")
	}))
	require.NoError(t, sendErr)
	require.Eventually(t, func() bool {
		b.handler.mu.Lock()
		defer b.handler.mu.Unlock()
		return len(b.handler.received["AAAA"]) == 1
	}, timeoutWait, tick)

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool {
		return len(a.handler.closedPeers()) == 1 && a.peerCount(t) == 0
	}, timeoutWait, tick)
	assert.Equal(t, []types.PeerID{"AAAA"}, b.handler.closedPeers())
}

func TestEngine_TransportFailureClosesRecord(t *testing.T) {
	network := mocks.NewNetwork()
	r := memory.New()
	defer r.Close()

	a := newTestEngine(t, "AAAA", r, network, clock.NewMock())
	b := newTestEngine(t, "BBBB", r, network, clock.NewMock())

	require.NoError(t, a.Start(context.Background()))
	require.Eventually(t, func() bool { return a.outbox.Stats().Published >= 1 }, timeoutWait, tick)
	require.NoError(t, b.Start(context.Background()))
	require.Eventually(t, func() bool { return len(b.handler.openedPeers()) == 1 }, timeoutWait, tick)

	conns := b.transport.Connections()
	require.Len(t, conns, 1)
	conns[0].SetState(webrtc.PeerConnectionStateFailed)

	require.Eventually(t, func() bool {
		return len(b.handler.closedPeers()) == 1 && b.peerCount(t) == 0
	}, timeoutWait, tick)
}
