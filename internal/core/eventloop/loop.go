// Package eventloop 提供单线程事件循环
//
// 一个会话内的所有状态变更（中继消息、WebRTC 回调、定时器、编辑器输入）
// 都以闭包形式投递到同一个 Loop，由唯一的 goroutine 依次执行。
// 因此同一入站帧触发的文档/presence 变更在处理下一个事件前完整生效，
// 各组件内部无需加锁。
package eventloop

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-coedit/internal/util/logger"
)

var log = logger.Logger("eventloop")

// ErrClosed 事件循环已关闭
var ErrClosed = errors.New("event loop closed")

// backlogWarnThreshold 积压任务数超过该值时告警
const backlogWarnThreshold = 1024

// Loop 单 goroutine 事件循环
//
// 任务队列不设上限，Post 从不阻塞，循环 goroutine 内也可以安全投递。
type Loop struct {
	clock clock.Clock

	mu     sync.Mutex
	queue  []func()
	closed bool
	warned bool

	wake chan struct{}
	done chan struct{}
}

// New 创建并启动事件循环
func New(clk clock.Clock) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	l := &Loop{
		clock: clk,
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		batch, closed := l.take()
		for _, task := range batch {
			l.exec(task)
		}
		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-l.wake
	}
}

// take 取走当前积压的全部任务
func (l *Loop) take() ([]func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	l.warned = false
	return batch, l.closed
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// exec 执行单个任务，任务 panic 不会终止循环
func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("task panicked", "panic", r)
		}
	}()
	task()
}

// Clock 返回循环使用的时钟
func (l *Loop) Clock() clock.Clock {
	return l.clock
}

// Post 投递任务，立即返回
//
// 循环已关闭时任务被丢弃并返回 ErrClosed。
func (l *Loop) Post(task func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, task)
	backlog := len(l.queue)
	warn := backlog >= backlogWarnThreshold && !l.warned
	if warn {
		l.warned = true
	}
	l.mu.Unlock()

	if warn {
		log.Warn("event loop backlog", "tasks", backlog)
	}
	l.signal()
	return nil
}

// Backlog 返回尚未开始执行的任务数
func (l *Loop) Backlog() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Do 投递任务并等待其执行完毕
//
// 不能在循环 goroutine 内调用，否则会死锁。
func (l *Loop) Do(task func()) error {
	done := make(chan struct{})
	if err := l.Post(func() {
		defer close(done)
		task()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-l.done:
		return ErrClosed
	}
}

// Close 停止接收任务，等待已投递任务执行完毕
func (l *Loop) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.signal()
	<-l.done
	return nil
}

// Done 返回循环退出时关闭的 channel
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// ============================================================================
//                              定时任务
// ============================================================================

// Timer 绑定到事件循环的可取消定时任务
type Timer struct {
	mu      sync.Mutex
	timer   *clock.Timer
	stopped bool
}

// AfterFunc 在 d 之后于循环 goroutine 上执行 fn
//
// Stop 之后即使底层定时器已触发，fn 也不会再执行。
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	t := &Timer{}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = l.clock.AfterFunc(d, func() {
		_ = l.Post(func() {
			if t.Stopped() {
				return
			}
			fn()
		})
	})
	return t
}

// Stop 取消定时任务，可重复调用
func (t *Timer) Stop() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
}

// Stopped 返回是否已取消
func (t *Timer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Jitter 返回 [min, max) 区间内的随机时长
//
// max <= min 时返回 min。用于心跳错峰，避免所有节点同时发送。
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(max-min)))
}
