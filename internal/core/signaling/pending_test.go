package signaling

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/metrics"
)

func TestPendingCandidates_BoundedPeers(t *testing.T) {
	loop := eventloop.New(clock.NewMock())
	defer loop.Close()

	p, err := newPendingCandidates(loop, time.Minute, 2, metrics.New())
	require.NoError(t, err)

	var got []webrtc.ICECandidateInit
	require.NoError(t, loop.Do(func() {
		p.add("P1", webrtc.ICECandidateInit{Candidate: "a"})
		p.add("P2", webrtc.ICECandidateInit{Candidate: "b"})
		p.add("P2", webrtc.ICECandidateInit{Candidate: "c"})
		p.add("P3", webrtc.ICECandidateInit{Candidate: "d"})
		got = p.take("P2")
	}))
	assert.Equal(t, []webrtc.ICECandidateInit{{Candidate: "b"}, {Candidate: "c"}}, got)

	var n int
	var evicted []webrtc.ICECandidateInit
	require.NoError(t, loop.Do(func() {
		n = p.len()
		evicted = p.take("P1")
	}))
	assert.Equal(t, 1, n)
	assert.Nil(t, evicted, "最久未更新的节点被淘汰")
}

func TestPendingCandidates_PurgeStopsTimers(t *testing.T) {
	clk := clock.NewMock()
	loop := eventloop.New(clk)
	defer loop.Close()

	p, err := newPendingCandidates(loop, time.Second, 8, nil)
	require.NoError(t, err)

	var timer *eventloop.Timer
	require.NoError(t, loop.Do(func() {
		p.add("P1", webrtc.ICECandidateInit{Candidate: "a"})
		e, _ := p.cache.Peek("P1")
		timer = e.timer
		p.purge()
	}))
	assert.True(t, timer.Stopped())
}
