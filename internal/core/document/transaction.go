package document

import "github.com/dep2p/go-coedit/pkg/types"

// Transaction 一次原子变更
//
// 同一事务内的所有插入与删除在事务结束时作为一个 delta、一个增量更新对外可见。
type Transaction struct {
	doc *Doc

	// Origin 事务来源
	Origin types.Origin

	// before 事务开始时的状态向量
	before StateVector

	// inserted 本事务集成的 item
	inserted map[*item]struct{}
	// deleted 本事务删除的 item
	deleted map[*item]struct{}
}

func newTransaction(d *Doc, origin types.Origin) *Transaction {
	return &Transaction{
		doc:      d,
		Origin:   origin,
		before:   d.StateVector(),
		inserted: make(map[*item]struct{}),
		deleted:  make(map[*item]struct{}),
	}
}

// Doc 返回事务所属文档
func (tx *Transaction) Doc() *Doc {
	return tx.doc
}

func (tx *Transaction) changed() bool {
	return len(tx.inserted) > 0 || len(tx.deleted) > 0
}

// deleteSet 本事务删除的 ID
func (tx *Transaction) deleteSet() []ID {
	out := make([]ID, 0, len(tx.deleted))
	for it := range tx.deleted {
		out = append(out, it.id)
	}
	return out
}
