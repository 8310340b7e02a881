package relay_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/internal/core/relay/memory"
	"github.com/dep2p/go-coedit/pkg/types"
)

func TestAddresses(t *testing.T) {
	addrs := relay.NewAddresses("", "my room", types.PeerID("ABCD123456"))
	assert.Equal(t, "coedit-room-my_room", addrs.Room)
	assert.Equal(t, "coedit-reply-ABCD123456", addrs.Reply)

	addrs = relay.NewAddresses("x", "r1", "P")
	assert.Equal(t, "x-room-r1", addrs.Room)
	assert.Equal(t, "x-reply-P", addrs.Reply)
}

func TestValidatePayload(t *testing.T) {
	assert.NoError(t, relay.ValidatePayload([]byte(`{"clientId":"A"}`)))
	assert.ErrorIs(t, relay.ValidatePayload([]byte(`{`)), relay.ErrInvalidPayload)
}

func TestOutbox_Publishes(t *testing.T) {
	mem := memory.New()
	defer mem.Close()
	ch, err := mem.Subscribe(context.Background(), "addr")
	require.NoError(t, err)

	var mu sync.Mutex
	var results []error
	cfg := relay.DefaultOutboxConfig()
	cfg.OnResult = func(_ string, err error) {
		mu.Lock()
		results = append(results, err)
		mu.Unlock()
	}
	out := relay.NewOutbox(mem, cfg)
	defer out.Close()

	assert.True(t, out.Publish("addr", []byte(`{"n":1}`)))
	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"n":1}`, string(msg))
	case <-time.After(time.Second):
		t.Fatal("消息未发布")
	}

	require.Eventually(t, func() bool { return out.Stats().Published == 1 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	assert.Equal(t, []error{nil}, results)
	mu.Unlock()
}

type blockingRelay struct {
	release chan struct{}
}

func (b *blockingRelay) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, relay.ErrClosed
}

func (b *blockingRelay) Close() error { return nil }

func (b *blockingRelay) Publish(ctx context.Context, _ string, _ []byte) error {
	select {
	case <-b.release:
		return errors.New("rejected")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestOutbox_DropsWhenFullAndCountsFailures(t *testing.T) {
	br := &blockingRelay{release: make(chan struct{})}
	out := relay.NewOutbox(br, relay.OutboxConfig{QueueSize: 1, Timeout: time.Minute})

	// 第一条被后台 goroutine 取走并阻塞，第二条占满队列
	require.True(t, out.Publish("a", []byte(`1`)))
	require.Eventually(t, func() bool { return out.Publish("a", []byte(`2`)) }, time.Second, time.Millisecond)
	assert.False(t, out.Publish("a", []byte(`3`)))
	assert.GreaterOrEqual(t, out.Stats().Dropped, uint64(1))

	close(br.release)
	require.Eventually(t, func() bool { return out.Stats().Failed == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, out.Close())
	assert.False(t, out.Publish("a", []byte(`4`)))
}
