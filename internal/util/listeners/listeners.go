// Package listeners 提供可在派发过程中安全增删的回调列表
//
// List 不是并发安全的，供单 goroutine（事件循环）内的观察者注册使用。
package listeners

// List 回调列表
type List[T any] struct {
	next    int
	entries []entry[T]
}

type entry[T any] struct {
	id int
	fn T
}

// Add 注册回调，返回注销函数；注销函数可重复调用
func (l *List[T]) Add(fn T) (remove func()) {
	l.next++
	id := l.next
	l.entries = append(l.entries, entry[T]{id: id, fn: fn})
	return func() {
		for i, e := range l.entries {
			if e.id == id {
				// 重新分配底层数组，正在遍历的快照不受影响
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

// Snapshot 返回当前回调的副本
func (l *List[T]) Snapshot() []T {
	out := make([]T, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.fn
	}
	return out
}

// Len 返回回调数量
func (l *List[T]) Len() int {
	return len(l.entries)
}
