package channel

import (
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/pkg/types"
	"github.com/dep2p/go-coedit/tests/mocks"
)

const (
	timeoutWait = 2 * time.Second
	tick        = 10 * time.Millisecond
)

var testConfig = Config{HeartbeatMin: 5 * time.Second, HeartbeatMax: 15 * time.Second}

type side struct {
	peer  types.PeerID
	doc   *document.Doc
	store *presence.Store
	mgr   *Manager
	errs  []error
}

func newSide(loop *eventloop.Loop, id document.ClientID, peer types.PeerID, m *metrics.Metrics) *side {
	s := &side{peer: peer}
	s.doc = document.New(document.WithClientID(id))
	s.store = presence.New(id, presence.WithClock(loop.Clock()))
	s.mgr = NewManager(testConfig, loop, s.doc, s.store,
		WithMetrics(m),
		WithErrorHandler(func(err error) { s.errs = append(s.errs, err) }),
	)
	return s
}

// inbox 处理函数就绪前到达的帧先缓存，就绪后按序重放
type inbox struct {
	handle func([]byte)
	early  [][]byte
}

func newInbox(dc *mocks.MockDataChannel) *inbox {
	in := &inbox{}
	dc.OnMessage(func(data []byte) {
		if in.handle == nil {
			in.early = append(in.early, data)
			return
		}
		in.handle(data)
	})
	return in
}

func (in *inbox) ready(fn func([]byte)) {
	in.handle = fn
	early := in.early
	in.early = nil
	for _, data := range early {
		fn(data)
	}
}

// connect 在事件循环上把两端通过一对数据通道接起来
func connect(t *testing.T, loop *eventloop.Loop, a, b *side) (*mocks.MockDataChannel, *mocks.MockDataChannel) {
	t.Helper()
	dcA, dcB := mocks.NewMockDataChannelPair("message")
	require.NoError(t, loop.Do(func() {
		inA, inB := newInbox(dcA), newInbox(dcB)
		inA.ready(a.mgr.OnChannelOpen(b.peer, dcA))
		inB.ready(b.mgr.OnChannelOpen(a.peer, dcB))
	}))
	return dcA, dcB
}

func text(t *testing.T, loop *eventloop.Loop, s *side) string {
	t.Helper()
	var out string
	require.NoError(t, loop.Do(func() { out = s.doc.Text().String() }))
	return out
}

func newLoop(t *testing.T) (*eventloop.Loop, *clock.Mock) {
	clk := clock.NewMock()
	loop := eventloop.New(clk)
	t.Cleanup(func() { _ = loop.Close() })
	return loop, clk
}

func TestManager_SyncOnOpen(t *testing.T) {
	loop, _ := newLoop(t)
	a := newSide(loop, 1, "AAAA", nil)
	b := newSide(loop, 2, "BBBB", nil)

	require.NoError(t, loop.Do(func() {
		assert.NoError(t, a.doc.Text().Insert(0, "hello"))
	}))

	connect(t, loop, a, b)

	// b 打开时发送 sync，a 回复缺失部分
	assert.Equal(t, "hello", text(t, loop, b))
}

func TestManager_SyncBothDirections(t *testing.T) {
	loop, _ := newLoop(t)
	a := newSide(loop, 1, "AAAA", nil)
	b := newSide(loop, 2, "BBBB", nil)

	require.NoError(t, loop.Do(func() {
		assert.NoError(t, a.doc.Text().Insert(0, "abc"))
		assert.NoError(t, b.doc.Text().Insert(0, "xyz"))
	}))
	connect(t, loop, a, b)

	assert.Len(t, text(t, loop, a), 6)
	assert.Equal(t, text(t, loop, a), text(t, loop, b))
}

func TestManager_HeartbeatConverges(t *testing.T) {
	loop, clk := newLoop(t)
	a := newSide(loop, 1, "AAAA", nil)
	b := newSide(loop, 2, "BBBB", nil)
	dcA, _ := connect(t, loop, a, b)

	// a 的本地广播丢失，只能等 b 的心跳
	require.NoError(t, loop.Do(func() {
		dcA.SendTextFunc = func(string) error { return nil }
		assert.NoError(t, a.doc.Text().Insert(0, "abc"))
		dcA.SendTextFunc = nil
	}))
	assert.Empty(t, text(t, loop, b))

	require.Eventually(t, func() bool {
		clk.Add(testConfig.HeartbeatMax)
		return text(t, loop, b) == "abc"
	}, timeoutWait, tick)
}

func TestManager_BroadcastsLocalEdits(t *testing.T) {
	loop, _ := newLoop(t)
	a := newSide(loop, 1, "AAAA", nil)
	b := newSide(loop, 2, "BBBB", nil)
	connect(t, loop, a, b)

	require.NoError(t, loop.Do(func() {
		assert.NoError(t, a.doc.Text().Insert(0, "live"))
	}))
	assert.Equal(t, "live", text(t, loop, b))

	// 远端来源的变更不再转发
	require.NoError(t, loop.Do(func() {
		assert.NoError(t, b.doc.Text().Insert(4, "!"))
	}))
	assert.Equal(t, "live!", text(t, loop, a))
}

func TestManager_AwarenessOnlyOwnEntry(t *testing.T) {
	loop, _ := newLoop(t)
	a := newSide(loop, 1, "AAAA", nil)
	b := newSide(loop, 2, "BBBB", nil)
	c := newSide(loop, 3, "CCCC", nil)
	connect(t, loop, a, b)
	connect(t, loop, b, c)

	require.NoError(t, loop.Do(func() {
		a.store.SetLocalState(&presence.State{PeerID: "AAAA", Name: "ann", Color: "#112233"})
	}))

	var onB, onC bool
	require.NoError(t, loop.Do(func() {
		_, onB = b.store.Get(1)
		_, onC = c.store.Get(1)
	}))
	assert.True(t, onB)
	assert.False(t, onC, "b 不转发 a 的条目")
}

func TestManager_ClosedRemovesPresence(t *testing.T) {
	loop, _ := newLoop(t)
	a := newSide(loop, 1, "AAAA", nil)
	b := newSide(loop, 2, "BBBB", nil)

	require.NoError(t, loop.Do(func() {
		b.store.SetLocalState(&presence.State{PeerID: "BBBB", Name: "bob"})
	}))
	connect(t, loop, a, b)

	var present bool
	require.NoError(t, loop.Do(func() { _, present = a.store.Get(2) }))
	require.True(t, present)

	require.NoError(t, loop.Do(func() {
		a.mgr.OnPeerClosed("BBBB", "test")
		_, present = a.store.Get(2)
	}))
	assert.False(t, present)
	assert.Empty(t, a.mgr.Channels())
}

func TestManager_DropsBadFrames(t *testing.T) {
	loop, _ := newLoop(t)
	m := metrics.New()
	a := newSide(loop, 1, "AAAA", m)
	b := newSide(loop, 2, "BBBB", m)
	dcA, _ := connect(t, loop, a, b)

	require.NoError(t, loop.Do(func() {
		for _, raw := range []string{
			`garbage`,
			`{"type":"chat"}`,
			`{"type":"update","data":"AAEC"}`,
			`{"type":"awareness","data":"/w=="}`,
		} {
			assert.NoError(t, dcA.SendText(raw))
		}
	}))

	infos := b.mgr.Channels()
	require.Len(t, infos, 1)
	assert.Equal(t, uint64(4), infos[0].Dropped)
	assert.Empty(t, b.errs)

	// 坏帧之后通道仍然可用
	require.NoError(t, loop.Do(func() {
		assert.NoError(t, a.doc.Text().Insert(0, "ok"))
	}))
	assert.Equal(t, "ok", text(t, loop, b))
}

func TestManager_HeartbeatStopsWhenChannelCloses(t *testing.T) {
	loop, clk := newLoop(t)
	a := newSide(loop, 1, "AAAA", nil)
	b := newSide(loop, 2, "BBBB", nil)
	dcA, _ := connect(t, loop, a, b)

	before := len(dcA.SentFrames())
	require.NoError(t, dcA.Close())
	clk.Add(time.Minute)
	clk.Add(time.Minute)

	var state webrtc.DataChannelState
	require.NoError(t, loop.Do(func() { state = dcA.ReadyState() }))
	assert.Equal(t, webrtc.DataChannelStateClosed, state)
	assert.Equal(t, before, len(dcA.SentFrames()))
}

func TestManager_ReplaceAndClose(t *testing.T) {
	loop, _ := newLoop(t)
	a := newSide(loop, 1, "AAAA", nil)
	b := newSide(loop, 2, "BBBB", nil)
	connect(t, loop, a, b)
	connect(t, loop, a, b)

	assert.Len(t, a.mgr.Channels(), 1)

	require.NoError(t, loop.Do(func() {
		a.mgr.Close()
		a.mgr.Close()
		assert.NoError(t, a.doc.Text().Insert(0, "quiet"))
	}))
	assert.Empty(t, a.mgr.Channels())
	assert.Empty(t, text(t, loop, b))
}

func TestManager_ObserverErrorIsFatal(t *testing.T) {
	loop, _ := newLoop(t)
	a := newSide(loop, 1, "AAAA", nil)
	b := newSide(loop, 2, "BBBB", nil)
	connect(t, loop, a, b)

	boom := errors.New("boom")
	require.NoError(t, loop.Do(func() {
		b.doc.Text().Observe(func(*document.TextEvent) error { return boom })
		assert.NoError(t, a.doc.Text().Insert(0, "x"))
	}))
	require.Len(t, b.errs, 1)
	assert.ErrorIs(t, b.errs[0], boom)
}
