package eventbus

import "sync"

// Subscription 事件订阅
type Subscription struct {
	node      *node
	out       chan any
	closeOnce sync.Once
}

// Out 返回事件通道，Close 后通道被关闭
func (s *Subscription) Out() <-chan any {
	return s.out
}

// Close 取消订阅，可重复调用
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		// 先从节点移除，之后不会再有发送方写入 out
		s.node.remove(s)
		close(s.out)
	})
	return nil
}
