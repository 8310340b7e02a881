package sse

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	r3sse "github.com/r3labs/sse/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

var _ interfaces.Relay = (*Relay)(nil)

func TestEventFilter(t *testing.T) {
	assert.False(t, isMessage(&r3sse.Event{Event: []byte("ready"), Data: []byte("{}")}))
	assert.False(t, isMessage(&r3sse.Event{Event: []byte("ping"), Data: []byte("{}")}))
	assert.False(t, isMessage(&r3sse.Event{}))
	assert.True(t, isMessage(&r3sse.Event{Data: []byte("{}")}))
	assert.True(t, isMessage(&r3sse.Event{Event: []byte("message"), Data: []byte("{}")}))

	body, ok := extractBody([]byte("{\"body\":{\"clientId\":\"A\"},\n\"timestamp\":1}"))
	require.True(t, ok)
	assert.JSONEq(t, `{"clientId":"A"}`, string(body))

	_, ok = extractBody([]byte(`{}`))
	assert.False(t, ok)
	_, ok = extractBody([]byte(`{"body":null}`))
	assert.False(t, ok)
	_, ok = extractBody([]byte(`nope`))
	assert.False(t, ok)
}

func TestRelay_URL(t *testing.T) {
	r := New("https://smee.io/")
	assert.Equal(t, "https://smee.io/coedit-room-x", r.URL("coedit-room-x"))
	assert.Equal(t, "https://other/x", r.URL("https://other/x"))
}

// smee.io 风格的测试服务端：每个 GET 先发 ready，然后推送一条消息
func TestRelay_SubscribeSmeeStyle(t *testing.T) {
	posted := make(chan []byte, 1)
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			body, _ := io.ReadAll(r.Body)
			posted <- body
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		case http.MethodGet:
			assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, "event: ready\ndata: {}\n\n")
			_, _ = io.WriteString(w, "data: {\"body\":{\"offer\":{\"type\":\"offer\"}},\"query\":{}}\n\n")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		}
	}))
	defer hs.Close()

	r := New(hs.URL, WithRetryInterval(20*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := r.Subscribe(ctx, "reply")
	require.NoError(t, err)
	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"offer":{"type":"offer"}}`, string(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("未收到事件")
	}

	require.NoError(t, r.Publish(ctx, "room", []byte(`{"clientId":"A"}`)))
	assert.JSONEq(t, `{"clientId":"A"}`, string(<-posted))
	assert.ErrorIs(t, r.Publish(ctx, "room", []byte(`{`)), relay.ErrInvalidPayload)

	hs.CloseClientConnections()
	require.NoError(t, r.Close())
	_, ok := <-ch
	assert.False(t, ok)
	assert.ErrorIs(t, r.Publish(ctx, "room", []byte(`{}`)), relay.ErrClosed)
}

func TestRelay_ReconnectUsesClock(t *testing.T) {
	var gets atomic.Int32
	hs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := gets.Add(1)
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if n > 1 {
			_, _ = io.WriteString(w, "data: {\"body\":{\"n\":2}}\n\n")
			w.(http.Flusher).Flush()
			<-r.Context().Done()
		}
		// 第一次连接立即断开
	}))
	defer hs.Close()

	mock := clock.NewMock()
	r := New(hs.URL, WithClock(mock), WithRetryInterval(time.Minute))
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := r.Subscribe(ctx, "room")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return gets.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), gets.Load(), "时钟未推进前不重连")

	require.Eventually(t, func() bool {
		mock.Add(time.Minute)
		return gets.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"n":2}`, string(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("重连后未收到事件")
	}
}
