package redisrelay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

var _ interfaces.Relay = (*Relay)(nil)

// dial 连接进程内 Redis
func dial(t *testing.T, mr *miniredis.Miniredis, opts ...Option) *Relay {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := Dial(ctx, mr.Addr(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func recv(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok)
		return string(msg)
	case <-time.After(5 * time.Second):
		t.Fatal("未收到消息")
		return ""
	}
}

func TestRelay_PublishSubscribe(t *testing.T) {
	mr := miniredis.RunT(t)
	r := dial(t, mr)
	ctx := context.Background()

	ch, err := r.Subscribe(ctx, "room")
	require.NoError(t, err)
	require.NoError(t, r.Publish(ctx, "room", []byte(`{"clientId":"A"}`)))

	assert.JSONEq(t, `{"clientId":"A"}`, recv(t, ch))
}

func TestRelay_FanOutAcrossClients(t *testing.T) {
	mr := miniredis.RunT(t)
	a := dial(t, mr)
	b := dial(t, mr)
	ctx := context.Background()

	chA, err := a.Subscribe(ctx, "room")
	require.NoError(t, err)
	chB, err := b.Subscribe(ctx, "room")
	require.NoError(t, err)
	other, err := b.Subscribe(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, a.Publish(ctx, "room", []byte(`{"n":1}`)))
	assert.JSONEq(t, `{"n":1}`, recv(t, chA), "发布者自己也收到")
	assert.JSONEq(t, `{"n":1}`, recv(t, chB))

	select {
	case msg := <-other:
		t.Fatalf("其他地址收到消息: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelay_ChannelPrefixIsolates(t *testing.T) {
	mr := miniredis.RunT(t)
	a := dial(t, mr, WithChannelPrefix("coedit-a-"))
	b := dial(t, mr, WithChannelPrefix("coedit-b-"))
	ctx := context.Background()

	chB, err := b.Subscribe(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, []string{"coedit-b-room"}, mr.PubSubChannels(""))

	require.NoError(t, a.Publish(ctx, "room", []byte(`{}`)))
	select {
	case msg := <-chB:
		t.Fatalf("前缀不同仍收到消息: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelay_SubscriptionEndsWithContext(t *testing.T) {
	mr := miniredis.RunT(t)
	r := dial(t, mr)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := r.Subscribe(ctx, "room")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("订阅未随 ctx 结束")
	}
	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("")) == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRelay_Closed(t *testing.T) {
	r := New(nil)
	require.NoError(t, r.Close())

	assert.ErrorIs(t, r.Publish(context.Background(), "a", []byte(`1`)), relay.ErrClosed)
	_, err := r.Subscribe(context.Background(), "a")
	assert.ErrorIs(t, err, relay.ErrClosed)
	assert.ErrorIs(t, r.Publish(context.Background(), "", nil), relay.ErrEmptyAddress)
}
