package document

import (
	"fmt"
	"unicode/utf8"
)

// OpKind delta 操作类型
type OpKind int

const (
	// OpRetain 跳过 N 个字符
	OpRetain OpKind = iota + 1
	// OpInsert 在当前位置插入 Text
	OpInsert
	// OpDelete 删除当前位置起 N 个字符
	OpDelete
)

// String 返回操作名
func (k OpKind) String() string {
	switch k {
	case OpRetain:
		return "retain"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op delta 中的单个操作
type Op struct {
	Kind OpKind
	N    int
	Text string
}

// Len 返回操作覆盖的字符数
func (op Op) Len() int {
	if op.Kind == OpInsert {
		return utf8.RuneCountInString(op.Text)
	}
	return op.N
}

// Delta 有序的 retain/insert/delete 操作序列
type Delta []Op

// Retain 构造 retain 操作
func Retain(n int) Op { return Op{Kind: OpRetain, N: n} }

// Insert 构造 insert 操作
func Insert(s string) Op { return Op{Kind: OpInsert, Text: s} }

// Delete 构造 delete 操作
func Delete(n int) Op { return Op{Kind: OpDelete, N: n} }

// deltaBuilder 合并相邻同类操作
type deltaBuilder struct {
	ops     Delta
	pending Op
	runes   []rune
}

func (b *deltaBuilder) flush() {
	switch b.pending.Kind {
	case OpInsert:
		b.ops = append(b.ops, Insert(string(b.runes)))
		b.runes = b.runes[:0]
	case OpRetain, OpDelete:
		b.ops = append(b.ops, b.pending)
	}
	b.pending = Op{}
}

func (b *deltaBuilder) retain(n int) {
	if b.pending.Kind != OpRetain {
		b.flush()
		b.pending.Kind = OpRetain
	}
	b.pending.N += n
}

func (b *deltaBuilder) delete(n int) {
	if b.pending.Kind != OpDelete {
		b.flush()
		b.pending.Kind = OpDelete
	}
	b.pending.N += n
}

func (b *deltaBuilder) insert(r rune) {
	if b.pending.Kind != OpInsert {
		b.flush()
		b.pending.Kind = OpInsert
	}
	b.runes = append(b.runes, r)
}

// done 结束构造，末尾的 retain 无意义被丢弃
func (b *deltaBuilder) done() Delta {
	if b.pending.Kind == OpRetain {
		b.pending = Op{}
	}
	b.flush()
	return b.ops
}
