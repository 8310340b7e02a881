// Package document 实现协同编辑使用的可复制文本文档（序列 CRDT）
//
// 算法沿用 YATA：每个字符是一个带全局唯一 ID (client, clock) 的 item，
// 记录插入时左右邻居的 ID（origin / rightOrigin）。并发插入在同一位置时
// 按 origin 关系与 client 大小确定唯一顺序，因此：
//
//   - 合并满足交换律：更新以任意顺序到达，各副本收敛到相同内容
//   - 合并满足幂等性：重复的更新不会产生任何变化
//   - 依赖尚未到达的 item 会暂存，依赖满足后自动集成
//
// Doc 不是并发安全的，调用方需保证所有访问都在同一个事件循环 goroutine 上。
package document

import (
	"fmt"
	"math/rand"
	"sort"

	"go.uber.org/multierr"

	"github.com/dep2p/go-coedit/internal/util/listeners"
	"github.com/dep2p/go-coedit/pkg/types"
)

// Doc 可复制文档
type Doc struct {
	clientID ClientID
	text     *Text

	// items 已集成的所有 item
	items map[ID]*item
	// clients 每个 client 按 clock 排列的 item，clock 从 0 开始连续
	clients map[ClientID][]*item

	// pending 依赖未满足的 item
	pending map[ID]*item
	// pendingDeletes 目标 item 尚未到达的删除区间
	pendingDeletes deleteSpans

	tx *Transaction

	beforeTx listeners.List[func(*Transaction)]
	afterTx  listeners.List[func(*Transaction)]
	update   listeners.List[func([]byte, types.Origin)]
}

// Option 文档选项
type Option func(*Doc)

// WithClientID 指定本地 client ID（测试中用于确定并发顺序）
func WithClientID(id ClientID) Option {
	return func(d *Doc) {
		d.clientID = id
	}
}

// New 创建空文档
func New(opts ...Option) *Doc {
	d := &Doc{
		clientID:       ClientID(rand.Uint32()),
		items:          make(map[ID]*item),
		clients:        make(map[ClientID][]*item),
		pending:        make(map[ID]*item),
		pendingDeletes: make(deleteSpans),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.text = &Text{doc: d}
	return d
}

// ClientID 返回本地 client ID
func (d *Doc) ClientID() ClientID {
	return d.clientID
}

// Text 返回文档中的共享文本
func (d *Doc) Text() *Text {
	return d.text
}

// OnBeforeTransaction 注册最外层事务开始前的回调
func (d *Doc) OnBeforeTransaction(fn func(*Transaction)) (unsubscribe func()) {
	return d.beforeTx.Add(fn)
}

// OnAfterTransaction 注册最外层事务结束后的回调
func (d *Doc) OnAfterTransaction(fn func(*Transaction)) (unsubscribe func()) {
	return d.afterTx.Add(fn)
}

// OnUpdate 注册增量更新回调
//
// 每个产生变更的事务结束时调用一次，update 为该事务变更的编码，
// origin 为事务来源，供传播层做回声抑制。
func (d *Doc) OnUpdate(fn func(update []byte, origin types.Origin)) (unsubscribe func()) {
	return d.update.Add(fn)
}

// Transact 在一个事务中执行 fn
//
// 嵌套调用会合并到外层事务。事务结束时依次触发文本观察者、更新回调和
// OnAfterTransaction 回调；观察者返回的错误被合并后返回。
func (d *Doc) Transact(origin types.Origin, fn func(*Transaction)) error {
	if d.tx != nil {
		fn(d.tx)
		return nil
	}

	tx := newTransaction(d, origin)
	for _, h := range d.beforeTx.Snapshot() {
		h(tx)
	}

	d.tx = tx
	func() {
		defer func() { d.tx = nil }()
		fn(tx)
	}()

	return d.finish(tx)
}

// finish 派发事务产生的事件
func (d *Doc) finish(tx *Transaction) error {
	var err error

	if tx.changed() {
		if delta := d.text.computeDelta(tx); len(delta) > 0 {
			evt := &TextEvent{Delta: delta, Origin: tx.Origin, Transaction: tx}
			for _, obs := range d.text.observers.Snapshot() {
				err = multierr.Append(err, obs(evt))
			}
		}

		if d.update.Len() > 0 {
			update := encodeUpdate(d.itemsSince(tx.before), tx.deleteSet())
			for _, h := range d.update.Snapshot() {
				h(update, tx.Origin)
			}
		}
	}

	for _, h := range d.afterTx.Snapshot() {
		h(tx)
	}
	return err
}

// StateVector 返回当前状态向量
func (d *Doc) StateVector() StateVector {
	sv := make(StateVector, len(d.clients))
	for client, items := range d.clients {
		sv[client] = uint64(len(items))
	}
	return sv
}

// EncodeStateVector 编码当前状态向量
func (d *Doc) EncodeStateVector() []byte {
	return d.StateVector().Encode()
}

// EncodeStateAsUpdate 编码远端状态向量之后的全部变更
//
// encodedSV 为空时编码整个文档。删除集总是完整发送，重复应用无副作用。
func (d *Doc) EncodeStateAsUpdate(encodedSV []byte) ([]byte, error) {
	remote := StateVector{}
	if len(encodedSV) > 0 {
		sv, err := DecodeStateVector(encodedSV)
		if err != nil {
			return nil, err
		}
		remote = sv
	}
	return encodeUpdate(d.itemsSince(remote), d.deleteSet()), nil
}

// ApplyUpdate 应用远端更新
//
// 已经见过的 item 与删除被忽略；依赖缺失的部分暂存到依赖到达为止。
func (d *Doc) ApplyUpdate(update []byte, origin types.Origin) error {
	items, ds, err := decodeUpdate(update)
	if err != nil {
		return err
	}
	if n := d.pendingDeletes.countWith(d.unresolved(ds)); n > maxPendingDeleteSpans {
		return fmt.Errorf("%w: %d pending delete spans exceed limit %d", ErrMalformedUpdate, n, maxPendingDeleteSpans)
	}

	return d.Transact(origin, func(tx *Transaction) {
		for _, it := range items {
			if d.known(it.id) {
				continue
			}
			d.pending[it.id] = it
		}
		d.pendingDeletes.add(ds)
		d.integratePending(tx)
	})
}

// unresolved 裁掉区间中已集成的部分
//
// 本次更新里的 item 可能补上一部分，这里按上限估计。
func (d *Doc) unresolved(ds []deleteSpan) []deleteSpan {
	out := make([]deleteSpan, 0, len(ds))
	for _, sp := range ds {
		known := uint64(len(d.clients[sp.client]))
		if sp.start+sp.length <= known {
			continue
		}
		if sp.start < known {
			sp.length -= known - sp.start
			sp.start = known
		}
		out = append(out, sp)
	}
	return out
}

// known 判断 item 是否已集成或已暂存
func (d *Doc) known(id ID) bool {
	if id.Clock < uint64(len(d.clients[id.Client])) {
		return true
	}
	_, ok := d.pending[id]
	return ok
}

// integratePending 反复集成依赖已满足的暂存 item，直到没有进展
func (d *Doc) integratePending(tx *Transaction) {
	for progress := true; progress; {
		progress = false

		ids := make([]ID, 0, len(d.pending))
		for id := range d.pending {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i].less(ids[j]) })

		for _, id := range ids {
			it := d.pending[id]
			if !d.ready(it) {
				continue
			}
			delete(d.pending, id)
			d.integrate(tx, it)
			progress = true
		}
	}

	d.resolveDeletes(tx)
}

// ready 检查 item 的依赖是否都已集成
func (d *Doc) ready(it *item) bool {
	if it.id.Clock != uint64(len(d.clients[it.id.Client])) {
		return false
	}
	if it.origin != nil && d.items[*it.origin] == nil {
		return false
	}
	if it.rightOrigin != nil && d.items[*it.rightOrigin] == nil {
		return false
	}
	return true
}

// Pending 返回暂存的 item 数与删除区间数（诊断用）
func (d *Doc) Pending() (items int, deletes int) {
	return len(d.pending), d.pendingDeletes.count()
}

// nextID 分配本地新 ID
func (d *Doc) nextID() ID {
	return ID{Client: d.clientID, Clock: uint64(len(d.clients[d.clientID]))}
}

// itemsSince 返回每个 client 中 clock 不小于 sv 的 item
func (d *Doc) itemsSince(sv StateVector) []*item {
	var out []*item
	for client, items := range d.clients {
		from := sv[client]
		if from < uint64(len(items)) {
			out = append(out, items[from:]...)
		}
	}
	return out
}

// deleteSet 返回文档中所有已删除 item 的 ID
func (d *Doc) deleteSet() []ID {
	var out []ID
	for _, items := range d.clients {
		for _, it := range items {
			if it.deleted {
				out = append(out, it.id)
			}
		}
	}
	return out
}
