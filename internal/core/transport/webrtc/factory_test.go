package webrtc

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/pkg/interfaces"
)

func TestLoggerFactory(t *testing.T) {
	l := loggerFactory{}.NewLogger("ice")
	require.NotNil(t, l)
	// 只验证不会 panic
	l.Tracef("candidate %d", 1)
	l.Warn("warn")
}

func TestFactory_NewPeerConnection(t *testing.T) {
	f := NewFactory()
	pc, err := f.NewPeerConnection([]webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}})
	require.NoError(t, err)
	defer pc.Close()

	dc, err := pc.CreateDataChannel("message")
	require.NoError(t, err)
	assert.Equal(t, "message", dc.Label())

	offer, err := pc.CreateOffer()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	assert.NotEmpty(t, offer.SDP)
}

// 本机回环建立真实数据通道：COEDIT_PION_TESTS=1
func TestFactory_LoopbackDataChannel(t *testing.T) {
	if os.Getenv("COEDIT_PION_TESTS") == "" {
		t.Skip("COEDIT_PION_TESTS 未设置")
	}
	f := NewFactory(WithLoopback())

	a, err := f.NewPeerConnection(nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := f.NewPeerConnection(nil)
	require.NoError(t, err)
	defer b.Close()

	var mu sync.Mutex
	var candA, candB []webrtc.ICECandidateInit
	a.OnICECandidate(func(c *webrtc.ICECandidateInit) {
		if c != nil {
			mu.Lock()
			candA = append(candA, *c)
			mu.Unlock()
		}
	})
	b.OnICECandidate(func(c *webrtc.ICECandidateInit) {
		if c != nil {
			mu.Lock()
			candB = append(candB, *c)
			mu.Unlock()
		}
	})

	got := make(chan string, 1)
	b.OnDataChannel(func(dc interfaces.DataChannel) {
		dc.OnMessage(func(data []byte) { got <- string(data) })
	})

	dc, err := a.CreateDataChannel("message")
	require.NoError(t, err)
	dc.OnOpen(func() { _ = dc.SendText("hello") })

	offer, err := a.CreateOffer()
	require.NoError(t, err)
	require.NoError(t, a.SetLocalDescription(offer))
	require.NoError(t, b.SetRemoteDescription(offer))
	answer, err := b.CreateAnswer()
	require.NoError(t, err)
	require.NoError(t, b.SetLocalDescription(answer))
	require.NoError(t, a.SetRemoteDescription(answer))

	// 交换已收集的候选
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(candA) > 0 && len(candB) > 0
	}, 10*time.Second, 50*time.Millisecond)
	mu.Lock()
	for _, c := range candA {
		require.NoError(t, b.AddICECandidate(c))
	}
	for _, c := range candB {
		require.NoError(t, a.AddICECandidate(c))
	}
	mu.Unlock()

	select {
	case msg := <-got:
		assert.Equal(t, "hello", msg)
	case <-time.After(15 * time.Second):
		t.Fatal("数据通道未建立")
	}
}
