package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

var _ interfaces.Relay = (*Relay)(nil)

func recv(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()
	select {
	case msg, ok := <-ch:
		require.True(t, ok, "通道已关闭")
		return msg
	case <-time.After(time.Second):
		t.Fatal("等待消息超时")
		return nil
	}
}

func TestRelay_FanOutIncludesPublisher(t *testing.T) {
	r := New()
	defer r.Close()
	ctx := context.Background()

	a, err := r.Subscribe(ctx, "room")
	require.NoError(t, err)
	b, err := r.Subscribe(ctx, "room")
	require.NoError(t, err)
	other, err := r.Subscribe(ctx, "other")
	require.NoError(t, err)

	require.NoError(t, r.Publish(ctx, "room", []byte(`{"x":1}`)))
	assert.JSONEq(t, `{"x":1}`, string(recv(t, a)))
	assert.JSONEq(t, `{"x":1}`, string(recv(t, b)))
	assert.Empty(t, other)
}

func TestRelay_UnsubscribeOnContextDone(t *testing.T) {
	r := New()
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := r.Subscribe(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Subscribers("room"))

	cancel()
	require.Eventually(t, func() bool { return r.Subscribers("room") == 0 }, time.Second, 5*time.Millisecond)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestRelay_DropsWhenFull(t *testing.T) {
	r := New(WithBufferSize(1))
	defer r.Close()
	ctx := context.Background()

	ch, err := r.Subscribe(ctx, "room")
	require.NoError(t, err)
	require.NoError(t, r.Publish(ctx, "room", []byte(`1`)))
	require.NoError(t, r.Publish(ctx, "room", []byte(`2`)))

	assert.Equal(t, "1", string(recv(t, ch)))
	assert.Empty(t, ch)
}

func TestRelay_Close(t *testing.T) {
	r := New()
	ch, err := r.Subscribe(context.Background(), "room")
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, ok := <-ch
	assert.False(t, ok)

	assert.ErrorIs(t, r.Publish(context.Background(), "room", []byte(`1`)), relay.ErrClosed)
	_, err = r.Subscribe(context.Background(), "room")
	assert.ErrorIs(t, err, relay.ErrClosed)
	assert.ErrorIs(t, r.Publish(context.Background(), "", nil), relay.ErrEmptyAddress)
}
