package coedit_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coedit "github.com/dep2p/go-coedit"
	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/relay/memory"
	"github.com/dep2p/go-coedit/pkg/types"
	"github.com/dep2p/go-coedit/tests/mocks"
)

const (
	timeoutWait = 5 * time.Second
	tick        = 10 * time.Millisecond
)

func testConfig(room string) *config.Config {
	cfg := config.NewConfig()
	cfg.Room = room
	cfg.Relay = cfg.Relay.WithBackend(config.RelayBackendMemory)
	cfg.Signaling = cfg.Signaling.WithAnnounceInterval(20*time.Millisecond, 50*time.Millisecond)
	cfg.Metrics.Enabled = true
	return cfg
}

func startSession(t *testing.T, r *memory.Relay, net *mocks.Network, id string, opts ...coedit.Option) *coedit.Session {
	t.Helper()
	base := []coedit.Option{
		coedit.WithConfig(testConfig("notes")),
		coedit.WithPeerID(types.PeerID(id)),
		coedit.WithRelay(r),
		coedit.WithTransport(net.Transport(id)),
	}
	s, err := coedit.Start(context.Background(), append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func text(t *testing.T, s *coedit.Session) string {
	t.Helper()
	txt, err := s.Text()
	require.NoError(t, err)
	return txt
}

func TestStart_RequiresRoom(t *testing.T) {
	_, err := coedit.Start(context.Background(), coedit.WithRelay(memory.New()))
	assert.ErrorIs(t, err, coedit.ErrNoRoom)
}

func TestStart_RejectsBadColor(t *testing.T) {
	_, err := coedit.Start(context.Background(), coedit.WithRoom("r"), coedit.WithColor("red"))
	assert.ErrorIs(t, err, coedit.ErrInvalidColor)
}

func TestSession_Identity(t *testing.T) {
	s := startSession(t, memory.New(), mocks.NewNetwork(), "AB12CD")

	assert.Equal(t, types.PeerID("AB12CD"), s.ID())
	assert.Equal(t, "notes", s.Room())

	name, err := s.Name()
	require.NoError(t, err)
	assert.Equal(t, "AB12", name)

	require.NoError(t, s.SetName("ann"))
	name, _ = s.Name()
	assert.Equal(t, "ann", name)

	require.NoError(t, s.SetName(""))
	name, _ = s.Name()
	assert.Equal(t, "AB12", name)

	assert.ErrorIs(t, s.SetColor("#12345"), coedit.ErrInvalidColor)
	require.NoError(t, s.SetColor("#00ff7f"))

	users, err := s.Users()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].Local)
	assert.Equal(t, "#00ff7f", users[0].Color)
}

func TestSession_Converges(t *testing.T) {
	r := memory.New()
	net := mocks.NewNetwork()
	a := startSession(t, r, net, "AAAA", coedit.WithDisplayName("ann"))
	b := startSession(t, r, net, "BBBB", coedit.WithDisplayName("bob"))

	require.NoError(t, a.Insert(0, "hello"))
	require.Eventually(t, func() bool { return text(t, b) == "hello" }, timeoutWait, tick)

	require.NoError(t, b.Insert(5, " world"))
	require.NoError(t, a.Delete(0, 1))
	require.Eventually(t, func() bool {
		return text(t, a) == "ello world" && text(t, b) == "ello world"
	}, timeoutWait, tick)

	// 双方都能看到对方的 presence
	require.Eventually(t, func() bool {
		users, err := b.Users()
		if err != nil {
			return false
		}
		for _, u := range users {
			if !u.Local && u.Name == "ann" {
				return true
			}
		}
		return false
	}, timeoutWait, tick)

	peers, err := a.Peers()
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, types.PeerID("BBBB"), peers[0].ID)
	assert.Equal(t, types.PeerStateConnected, peers[0].State)

	channels, err := a.Channels()
	require.NoError(t, err)
	assert.Len(t, channels, 1)

	assert.NotNil(t, a.Metrics())
	assert.NoError(t, a.Err())
}

func TestSession_LateJoinerCatchesUp(t *testing.T) {
	r := memory.New()
	net := mocks.NewNetwork()
	a := startSession(t, r, net, "AAAA")
	require.NoError(t, a.Insert(0, "draft"))

	c := startSession(t, r, net, "CCCC")
	require.Eventually(t, func() bool { return text(t, c) == "draft" }, timeoutWait, tick)
}

func TestSession_SaveFile(t *testing.T) {
	s := startSession(t, memory.New(), mocks.NewNetwork(), "AAAA")
	require.NoError(t, s.Insert(0, "line1\nline2"))

	assert.Equal(t, "Room notes.txt", s.SaveFileName(""))
	assert.Equal(t, "Room notes.md", s.SaveFileName("md"))

	dir := t.TempDir()
	path, err := s.SaveFile(dir, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Room notes.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", string(data))
}

func TestSession_Close(t *testing.T) {
	s := startSession(t, memory.New(), mocks.NewNetwork(), "AAAA")
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Text()
	assert.ErrorIs(t, err, coedit.ErrSessionClosed)
	assert.ErrorIs(t, s.Insert(0, "x"), coedit.ErrSessionClosed)
}
