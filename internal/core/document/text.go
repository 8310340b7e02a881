package document

import (
	"fmt"
	"strings"

	"github.com/dep2p/go-coedit/internal/util/listeners"
	"github.com/dep2p/go-coedit/pkg/types"
)

// Text 文档中的共享文本
//
// 位置与长度均以 rune 计。
type Text struct {
	doc       *Doc
	start     *item
	observers listeners.List[Observer]
}

// Observer 文本变更观察者
//
// 返回的错误会中止本次派发的结果并由 Transact/ApplyUpdate 返回。
type Observer func(*TextEvent) error

// TextEvent 一个事务对文本造成的变更
type TextEvent struct {
	// Delta 相对于事务开始前文本的变更
	Delta Delta
	// Origin 事务来源
	Origin types.Origin
	// Transaction 产生该变更的事务
	Transaction *Transaction
}

// Observe 注册文本观察者
func (t *Text) Observe(fn Observer) (unobserve func()) {
	return t.observers.Add(fn)
}

// String 返回当前可见文本
func (t *Text) String() string {
	var b strings.Builder
	for it := t.start; it != nil; it = it.right {
		if !it.deleted {
			b.WriteRune(it.content)
		}
	}
	return b.String()
}

// Len 返回可见 rune 数
func (t *Text) Len() int {
	n := 0
	for it := t.start; it != nil; it = it.right {
		if !it.deleted {
			n++
		}
	}
	return n
}

// Insert 在 index 处插入 s
//
// 在事务外调用时自动开启来源为空的事务。
func (t *Text) Insert(index int, s string) error {
	if s == "" {
		return nil
	}
	var err error
	txErr := t.doc.Transact("", func(tx *Transaction) {
		err = t.insert(tx, index, s)
	})
	if err != nil {
		return err
	}
	return txErr
}

// Delete 删除从 index 开始的 length 个字符
func (t *Text) Delete(index, length int) error {
	if length <= 0 {
		return nil
	}
	var err error
	txErr := t.doc.Transact("", func(tx *Transaction) {
		err = t.delete(tx, index, length)
	})
	if err != nil {
		return err
	}
	return txErr
}

// ApplyDelta 按 delta 修改文本
func (t *Text) ApplyDelta(delta Delta) error {
	var err error
	txErr := t.doc.Transact("", func(tx *Transaction) {
		index := 0
		for _, op := range delta {
			switch op.Kind {
			case OpRetain:
				index += op.N
			case OpInsert:
				if err = t.insert(tx, index, op.Text); err != nil {
					return
				}
				index += op.Len()
			case OpDelete:
				if err = t.delete(tx, index, op.N); err != nil {
					return
				}
			default:
				err = fmt.Errorf("%w: %v", ErrProtocolViolation, op.Kind)
				return
			}
		}
	})
	if err != nil {
		return err
	}
	return txErr
}

// findPosition 返回第 index 个可见字符（left）及其右侧紧邻的 item（right）
func (t *Text) findPosition(index int) (left, right *item, err error) {
	if index < 0 {
		return nil, nil, fmt.Errorf("%w: %d", ErrOutOfRange, index)
	}
	right = t.start
	for right != nil && index > 0 {
		if !right.deleted {
			index--
		}
		left = right
		right = right.right
	}
	if index > 0 {
		return nil, nil, fmt.Errorf("%w: beyond end by %d", ErrOutOfRange, index)
	}
	return left, right, nil
}

func (t *Text) insert(tx *Transaction, index int, s string) error {
	left, right, err := t.findPosition(index)
	if err != nil {
		return err
	}
	var rightOrigin *ID
	if right != nil {
		id := right.id
		rightOrigin = &id
	}
	for _, r := range s {
		it := &item{
			id:          t.doc.nextID(),
			rightOrigin: rightOrigin,
			content:     r,
		}
		if left != nil {
			id := left.id
			it.origin = &id
		}
		t.doc.integrate(tx, it)
		left = it
	}
	return nil
}

func (t *Text) delete(tx *Transaction, index, length int) error {
	_, it, err := t.findPosition(index)
	if err != nil {
		return err
	}
	for ; it != nil && length > 0; it = it.right {
		if it.deleted {
			continue
		}
		t.doc.markDeleted(tx, it)
		length--
	}
	if length > 0 {
		return fmt.Errorf("%w: delete beyond end by %d", ErrOutOfRange, length)
	}
	return nil
}

// computeDelta 计算事务相对于事务开始前文本的 delta
func (t *Text) computeDelta(tx *Transaction) Delta {
	var b deltaBuilder
	for it := t.start; it != nil; it = it.right {
		_, inserted := tx.inserted[it]
		_, deleted := tx.deleted[it]
		switch {
		case inserted:
			if !it.deleted {
				b.insert(it.content)
			}
		case deleted:
			b.delete(1)
		case !it.deleted:
			b.retain(1)
		}
	}
	return b.done()
}
