// Package zone 提供非阻塞的互斥执行区
//
// Zone 不是锁：已被占用时后来者的工作直接丢弃，而不是排队等待。
// 编辑器与文档之间互相触发的事件依赖这一点避免无限回环：
// 把远端 delta 写入编辑器时，编辑器同步发出的内容变更事件会被丢弃，
// 不会再写回文档。
package zone

import "sync/atomic"

// Zone 至多一个工作同时执行的区域，零值可用
type Zone struct {
	held atomic.Bool
}

// Run 尝试进入区域执行 fn
//
// 区域已被占用时不执行 fn 并返回 false。fn panic 时区域同样会被释放。
func (z *Zone) Run(fn func()) bool {
	if !z.held.CompareAndSwap(false, true) {
		return false
	}
	defer z.held.Store(false)
	fn()
	return true
}

// Held 返回区域当前是否被占用
func (z *Zone) Held() bool {
	return z.held.Load()
}
