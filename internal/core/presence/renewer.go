package presence

import "github.com/dep2p/go-coedit/internal/core/eventloop"

// Renewer 在事件循环上周期性调用 Store.Check
type Renewer struct {
	store *Store
	loop  *eventloop.Loop
	timer *eventloop.Timer
}

// NewRenewer 创建 Renewer，Start 之前不会调度任何定时器
func NewRenewer(store *Store, loop *eventloop.Loop) *Renewer {
	return &Renewer{store: store, loop: loop}
}

// Start 开始周期检查，必须在事件循环上调用
func (r *Renewer) Start() {
	r.schedule()
}

func (r *Renewer) schedule() {
	r.timer = r.loop.AfterFunc(r.store.CheckInterval(), func() {
		r.store.Check()
		r.schedule()
	})
}

// Stop 停止周期检查，必须在事件循环上调用
func (r *Renewer) Stop() {
	r.timer.Stop()
	r.timer = nil
}
