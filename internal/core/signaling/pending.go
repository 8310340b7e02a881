package signaling

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pion/webrtc/v4"

	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/pkg/types"
)

// pendingEntry 一个远端节点暂存的候选
type pendingEntry struct {
	candidates []webrtc.ICECandidateInit
	timer      *eventloop.Timer
	taken      bool
}

// pendingCandidates 尚无连接记录的远端节点发来的候选
//
// 过期时间从该节点第一个候选到达时开始计算，到期整体丢弃。
// 节点数量由 LRU 限制，超出时最久未更新的节点被淘汰。
// 只在事件循环上访问。
type pendingCandidates struct {
	loop    *eventloop.Loop
	ttl     time.Duration
	cache   *lru.Cache[types.PeerID, *pendingEntry]
	metrics *metrics.Metrics
}

func newPendingCandidates(loop *eventloop.Loop, ttl time.Duration, maxPeers int, m *metrics.Metrics) (*pendingCandidates, error) {
	p := &pendingCandidates{loop: loop, ttl: ttl, metrics: m}
	cache, err := lru.NewWithEvict(maxPeers, p.onEvict)
	if err != nil {
		return nil, err
	}
	p.cache = cache
	return p, nil
}

func (p *pendingCandidates) onEvict(peer types.PeerID, e *pendingEntry) {
	e.timer.Stop()
	if !e.taken {
		log.Debug("丢弃暂存候选", "peer", peer, "count", len(e.candidates))
		p.metrics.PendingCandidate("expired", len(e.candidates))
	}
}

// add 暂存一个候选
func (p *pendingCandidates) add(peer types.PeerID, c webrtc.ICECandidateInit) {
	e, ok := p.cache.Get(peer)
	if !ok {
		e = &pendingEntry{}
		e.timer = p.loop.AfterFunc(p.ttl, func() {
			if cur, ok := p.cache.Peek(peer); ok && cur == e {
				p.cache.Remove(peer)
			}
		})
		p.cache.Add(peer, e)
	}
	e.candidates = append(e.candidates, c)
	p.metrics.PendingCandidate("buffered", 1)
}

// take 取出并移除该节点的全部候选
func (p *pendingCandidates) take(peer types.PeerID) []webrtc.ICECandidateInit {
	e, ok := p.cache.Peek(peer)
	if !ok {
		return nil
	}
	e.taken = true
	p.cache.Remove(peer)
	p.metrics.PendingCandidate("flushed", len(e.candidates))
	return e.candidates
}

// drop 丢弃该节点的候选
func (p *pendingCandidates) drop(peer types.PeerID) {
	p.cache.Remove(peer)
}

// len 返回有暂存候选的节点数
func (p *pendingCandidates) len() int {
	return p.cache.Len()
}

// purge 清空并停止全部定时器
func (p *pendingCandidates) purge() {
	p.cache.Purge()
}
