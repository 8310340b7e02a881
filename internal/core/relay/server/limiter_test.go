package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Connections(t *testing.T) {
	l := NewLimiter(LimiterConfig{MaxConnections: 3, MaxConnectionsPerClient: 2})

	require.NoError(t, l.AcquireConn("a"))
	require.NoError(t, l.AcquireConn("a"))
	assert.ErrorIs(t, l.AcquireConn("a"), ErrTooManyClientConnections)

	require.NoError(t, l.AcquireConn("b"))
	assert.ErrorIs(t, l.AcquireConn("c"), ErrTooManyConnections)

	l.ReleaseConn("a")
	require.NoError(t, l.AcquireConn("c"))

	stats := l.Stats()
	assert.Equal(t, 3, stats.Connections)
	assert.Equal(t, 3, stats.UniqueClients)

	l.ReleaseConn("unknown")
	assert.Equal(t, 3, l.Stats().Connections)
}

func TestLimiter_PublishRate(t *testing.T) {
	l := NewLimiter(LimiterConfig{PublishRate: 0.001, PublishBurst: 2})
	assert.NoError(t, l.AllowPublish("a"))
	assert.NoError(t, l.AllowPublish("a"))
	assert.ErrorIs(t, l.AllowPublish("a"), ErrRateLimited)
	assert.NoError(t, l.AllowPublish("b"), "限流按客户端独立")

	unlimited := NewLimiter(DefaultLimiterConfig())
	for i := 0; i < 100; i++ {
		require.NoError(t, unlimited.AllowPublish("a"))
	}
}
