package presence

import (
	"sort"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/util/listeners"
	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/pkg/types"
)

var log = logger.Logger("presence")

const (
	// DefaultOutdatedTimeout 远端条目的过期时间
	DefaultOutdatedTimeout = 30 * time.Second
	// DefaultRenewInterval 本地条目的刷新间隔
	DefaultRenewInterval = 15 * time.Second
)

type meta struct {
	clock       uint64
	lastUpdated time.Time
}

// Store awareness 存储
type Store struct {
	clientID document.ClientID
	clk      clock.Clock

	outdatedTimeout time.Duration
	renewInterval   time.Duration

	states map[document.ClientID]*State
	meta   map[document.ClientID]meta

	onUpdate listeners.List[func(Change)]
	onChange listeners.List[func(Change)]
}

// Option Store 选项
type Option func(*Store)

// WithClock 指定时钟（测试用 mock）
func WithClock(clk clock.Clock) Option {
	return func(s *Store) {
		s.clk = clk
	}
}

// WithTimeouts 指定过期时间与刷新间隔
func WithTimeouts(outdated, renew time.Duration) Option {
	return func(s *Store) {
		if outdated > 0 {
			s.outdatedTimeout = outdated
		}
		if renew > 0 {
			s.renewInterval = renew
		}
	}
}

// New 创建 awareness 存储，clientID 通常取自文档
func New(clientID document.ClientID, opts ...Option) *Store {
	s := &Store{
		clientID:        clientID,
		clk:             clock.New(),
		outdatedTimeout: DefaultOutdatedTimeout,
		renewInterval:   DefaultRenewInterval,
		states:          make(map[document.ClientID]*State),
		meta:            make(map[document.ClientID]meta),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ClientID 返回本地 client
func (s *Store) ClientID() document.ClientID {
	return s.clientID
}

// OnUpdate 注册回调：每次应用条目（即使内容未变）都会触发
func (s *Store) OnUpdate(fn func(Change)) (unsubscribe func()) {
	return s.onUpdate.Add(fn)
}

// OnChange 注册回调：只在条目被添加、修改或移除时触发
func (s *Store) OnChange(fn func(Change)) (unsubscribe func()) {
	return s.onChange.Add(fn)
}

// LocalState 返回本地条目副本，未设置时为 nil
func (s *Store) LocalState() *State {
	return s.states[s.clientID].Clone()
}

// SetLocalState 替换本地条目，nil 表示下线
func (s *Store) SetLocalState(state *State) {
	prev := s.states[s.clientID]
	m := s.meta[s.clientID]
	m.clock++
	m.lastUpdated = s.clk.Now()
	s.meta[s.clientID] = m

	if state == nil {
		delete(s.states, s.clientID)
	} else {
		s.states[s.clientID] = state.Clone()
	}

	var ch Change
	ch.Origin = types.OriginLocal
	switch {
	case prev == nil && state != nil:
		ch.Added = []document.ClientID{s.clientID}
	case prev != nil && state == nil:
		ch.Removed = []document.ClientID{s.clientID}
	case prev != nil && !prev.Equal(state):
		ch.Updated = []document.ClientID{s.clientID}
	}

	s.emit(ch, []document.ClientID{s.clientID})
}

// UpdateLocal 在本地条目副本上执行 fn 后写回
func (s *Store) UpdateLocal(fn func(*State)) {
	st := s.LocalState()
	if st == nil {
		st = &State{}
	}
	fn(st)
	s.SetLocalState(st)
}

// Get 返回某个 client 的条目副本
func (s *Store) Get(id document.ClientID) (*State, bool) {
	st, ok := s.states[id]
	return st.Clone(), ok
}

// States 返回全部条目副本
func (s *Store) States() map[document.ClientID]*State {
	out := make(map[document.ClientID]*State, len(s.states))
	for id, st := range s.states {
		out[id] = st.Clone()
	}
	return out
}

// ClientsOf 返回归属于 peer 的所有 client
func (s *Store) ClientsOf(peer types.PeerID) []document.ClientID {
	var out []document.ClientID
	for id, st := range s.states {
		if st.PeerID == peer {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// RemoveStates 移除条目
//
// 移除本地条目时递增其时钟，使远端也接受移除。
func (s *Store) RemoveStates(ids []document.ClientID, origin types.Origin) {
	var removed []document.ClientID
	for _, id := range ids {
		if _, ok := s.states[id]; !ok {
			continue
		}
		delete(s.states, id)
		if id == s.clientID {
			m := s.meta[id]
			m.clock++
			m.lastUpdated = s.clk.Now()
			s.meta[id] = m
		}
		removed = append(removed, id)
	}
	if len(removed) == 0 {
		return
	}
	s.emit(Change{Removed: removed, Origin: origin}, removed)
}

// RemovePeer 移除归属于 peer 的所有条目
func (s *Store) RemovePeer(peer types.PeerID, origin types.Origin) []document.ClientID {
	ids := s.ClientsOf(peer)
	s.RemoveStates(ids, origin)
	return ids
}

// EncodeUpdate 编码指定 client 的条目；ids 为空时编码全部已知条目
func (s *Store) EncodeUpdate(ids []document.ClientID) []byte {
	if len(ids) == 0 {
		for id := range s.meta {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	entries := make([]entry, 0, len(ids))
	for _, id := range ids {
		m, ok := s.meta[id]
		if !ok {
			continue
		}
		entries = append(entries, entry{client: id, clock: m.clock, state: s.states[id]})
	}
	return encodeEntries(entries)
}

// ApplyUpdate 应用远端 awareness 更新
func (s *Store) ApplyUpdate(update []byte, origin types.Origin) error {
	entries, err := decodeEntries(update)
	if err != nil {
		return err
	}

	now := s.clk.Now()
	var ch Change
	var touched []document.ClientID
	ch.Origin = origin

	for _, e := range entries {
		m, known := s.meta[e.client]
		prev, present := s.states[e.client]

		if known && !(m.clock < e.clock || (m.clock == e.clock && e.state == nil && present)) {
			continue
		}

		if e.state == nil && e.client == s.clientID && present {
			// 本地条目仍在线：递增时钟覆盖远端的移除
			m.clock = e.clock + 1
			m.lastUpdated = now
			s.meta[e.client] = m
			continue
		}

		s.meta[e.client] = meta{clock: e.clock, lastUpdated: now}
		touched = append(touched, e.client)

		switch {
		case e.state == nil:
			if present {
				delete(s.states, e.client)
				ch.Removed = append(ch.Removed, e.client)
			}
		case !present:
			s.states[e.client] = e.state
			ch.Added = append(ch.Added, e.client)
		default:
			s.states[e.client] = e.state
			if !prev.Equal(e.state) {
				ch.Updated = append(ch.Updated, e.client)
			}
		}
	}

	s.emit(ch, touched)
	return nil
}

// Check 刷新本地条目并移除过期的远端条目
func (s *Store) Check() {
	now := s.clk.Now()

	if local, ok := s.states[s.clientID]; ok {
		if m := s.meta[s.clientID]; s.renewInterval <= now.Sub(m.lastUpdated) {
			s.SetLocalState(local)
		}
	}

	var outdated []document.ClientID
	for id, m := range s.meta {
		if id == s.clientID {
			continue
		}
		if _, ok := s.states[id]; ok && s.outdatedTimeout <= now.Sub(m.lastUpdated) {
			outdated = append(outdated, id)
		}
	}
	if len(outdated) > 0 {
		sort.Slice(outdated, func(i, j int) bool { return outdated[i] < outdated[j] })
		log.Debug("移除过期 presence", "clients", len(outdated))
		s.RemoveStates(outdated, types.OriginTimeout)
	}
}

// CheckInterval 返回建议的 Check 周期
func (s *Store) CheckInterval() time.Duration {
	return s.outdatedTimeout / 10
}

// emit 派发事件；touched 为本次写入的条目
func (s *Store) emit(ch Change, touched []document.ClientID) {
	if !ch.Empty() {
		for _, fn := range s.onChange.Snapshot() {
			fn(ch)
		}
	}
	if len(touched) == 0 {
		return
	}
	upd := ch
	if upd.Empty() {
		upd.Updated = touched
	} else {
		upd.Updated = append(upd.Updated, unchanged(touched, ch)...)
	}
	for _, fn := range s.onUpdate.Snapshot() {
		fn(upd)
	}
}

// unchanged 返回 touched 中内容未变的条目
func unchanged(touched []document.ClientID, ch Change) []document.ClientID {
	seen := make(map[document.ClientID]struct{})
	for _, id := range ch.Clients() {
		seen[id] = struct{}{}
	}
	var out []document.ClientID
	for _, id := range touched {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
