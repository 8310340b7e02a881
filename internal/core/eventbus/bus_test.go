package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/pkg/types"
)

// TestBus_SubscribeEmit 测试订阅与发射
func TestBus_SubscribeEmit(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.EvtPeerConnected))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(types.EvtPeerConnected))
	require.NoError(t, err)

	require.NoError(t, em.Emit(types.EvtPeerConnected{Peer: "AAAA"}))

	select {
	case evt := <-sub.Out():
		assert.Equal(t, types.PeerID("AAAA"), evt.(types.EvtPeerConnected).Peer)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

// TestBus_TypeIsolation 不同事件类型互不干扰
func TestBus_TypeIsolation(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.EvtPeerDisconnected))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(types.EvtPeerConnected))
	require.NoError(t, err)
	require.NoError(t, em.Emit(types.EvtPeerConnected{Peer: "A"}))

	select {
	case evt := <-sub.Out():
		t.Fatalf("unexpected event %v", evt)
	default:
	}
}

// TestBus_InvalidTypes 非指针与 nil 类型
func TestBus_InvalidTypes(t *testing.T) {
	bus := NewBus()

	_, err := bus.Subscribe(nil)
	assert.ErrorIs(t, err, ErrInvalidEventType)

	_, err = bus.Subscribe(types.EvtPeerConnected{})
	assert.ErrorIs(t, err, ErrNonPointerType)

	_, err = bus.Emitter(types.EvtFatal{})
	assert.ErrorIs(t, err, ErrNonPointerType)
}

// TestBus_SlowSubscriberDoesNotBlock 缓冲区满时丢弃而不是阻塞
func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.EvtFatal), BufSize(1))
	require.NoError(t, err)
	defer sub.Close()

	em, err := bus.Emitter(new(types.EvtFatal))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = em.Emit(types.EvtFatal{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked on slow subscriber")
	}
	assert.Len(t, sub.Out(), 1)
}

// TestBus_Stateful 有状态发射器向新订阅者补发最后一个事件
func TestBus_Stateful(t *testing.T) {
	bus := NewBus()

	em, err := bus.Emitter(new(types.EvtFatal), Stateful())
	require.NoError(t, err)
	require.NoError(t, em.Emit(types.EvtFatal{BaseEvent: types.NewBaseEvent(types.EventTypeFatal)}))

	sub, err := bus.Subscribe(new(types.EvtFatal))
	require.NoError(t, err)
	defer sub.Close()

	select {
	case evt := <-sub.Out():
		assert.Equal(t, types.EventTypeFatal, evt.(types.EvtFatal).Type())
	default:
		t.Fatal("stateful event not replayed")
	}
}

// TestSubscription_Close 关闭后通道关闭且不再接收
func TestSubscription_Close(t *testing.T) {
	bus := NewBus()

	sub, err := bus.Subscribe(new(types.EvtPeerConnected))
	require.NoError(t, err)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	_, ok := <-sub.Out()
	assert.False(t, ok)

	em, err := bus.Emitter(new(types.EvtPeerConnected))
	require.NoError(t, err)
	assert.NotPanics(t, func() { _ = em.Emit(types.EvtPeerConnected{}) })

	require.NoError(t, em.Close())
	assert.ErrorIs(t, em.Emit(types.EvtPeerConnected{}), ErrEmitterClosed)
}
