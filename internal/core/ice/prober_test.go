package ice

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/pion/stun"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSTUNServer 启动只响应一次 Binding 请求的本地 STUN 服务器
func startSTUNServer(t *testing.T) string {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 1500)
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		req := &stun.Message{Raw: buf[:n]}
		if err := req.Decode(); err != nil {
			return
		}
		res, err := stun.Build(
			stun.NewTransactionIDSetter(req.TransactionID),
			stun.BindingSuccess,
			&stun.XORMappedAddress{IP: from.IP, Port: from.Port},
			stun.Fingerprint,
		)
		if err != nil {
			return
		}
		_, _ = conn.WriteToUDP(res.Raw, from)
	}()
	return conn.LocalAddr().String()
}

func TestProber_QueryLocalServer(t *testing.T) {
	server := startSTUNServer(t)
	p := NewProber(2 * time.Second)

	addr, err := p.Query(context.Background(), "stun:"+server)
	require.NoError(t, err)
	assert.True(t, addr.IP.IsLoopback())
	assert.NotZero(t, addr.Port)
}

func TestProber_QueryTimeout(t *testing.T) {
	// 监听但从不响应
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	p := NewProber(100 * time.Millisecond)
	_, err = p.Query(context.Background(), conn.LocalAddr().String())
	require.Error(t, err)
	assert.True(t, IsProbeError(err))
}

func TestProber_Filter(t *testing.T) {
	p := NewProber(time.Second)
	p.SetQueryFunc(func(_ context.Context, server string) (*net.UDPAddr, error) {
		if server == "stun:bad:1" {
			return nil, errors.New("unreachable")
		}
		return &net.UDPAddr{IP: net.IPv4(1, 2, 3, 4), Port: 5}, nil
	})

	got := p.Filter(context.Background(), []string{"stun:a:1", "stun:bad:1", "stun:b:1"})
	assert.Equal(t, []string{"stun:a:1", "stun:b:1"}, got)
}
