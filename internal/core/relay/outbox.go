package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

var log = logger.Logger("relay")

// OutboxConfig 发布队列配置
type OutboxConfig struct {
	// QueueSize 队列长度，满时新消息被丢弃
	QueueSize int
	// Rate 每秒发布数（0 = 不限制）
	Rate float64
	// Burst 突发上限
	Burst int
	// Timeout 单次发布超时
	Timeout time.Duration
	// OnResult 每条消息处理完毕后回调（指标用），可为 nil
	OnResult func(address string, err error)
}

// DefaultOutboxConfig 返回默认配置
func DefaultOutboxConfig() OutboxConfig {
	return OutboxConfig{
		QueueSize: 256,
		Rate:      20,
		Burst:     40,
		Timeout:   10 * time.Second,
	}
}

// OutboxStats 发布统计
type OutboxStats struct {
	Published uint64
	Failed    uint64
	Dropped   uint64
}

type outMsg struct {
	address string
	payload []byte
}

// Outbox 异步发布队列
//
// 信令在事件循环上产生消息，Publish 只入队不阻塞；后台 goroutine 按速率
// 限制逐条发布。发布失败只记录日志，中继本就不保证送达。
type Outbox struct {
	relay   interfaces.Relay
	cfg     OutboxConfig
	limiter *rate.Limiter

	queue  chan outMsg
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	published atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// NewOutbox 创建并启动发布队列
func NewOutbox(r interfaces.Relay, cfg OutboxConfig) *Outbox {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultOutboxConfig().QueueSize
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Outbox{
		relay:   r,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, burst),
		queue:   make(chan outMsg, cfg.QueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
	o.wg.Add(1)
	go o.run()
	return o
}

// Publish 入队一条消息，队列已满或已关闭时返回 false
func (o *Outbox) Publish(address string, payload []byte) bool {
	if o.ctx.Err() != nil {
		return false
	}
	select {
	case o.queue <- outMsg{address: address, payload: payload}:
		return true
	default:
		n := o.dropped.Add(1)
		log.Warn("发布队列已满，丢弃消息", "address", address, "dropped", n)
		return false
	}
}

func (o *Outbox) run() {
	defer o.wg.Done()
	for {
		select {
		case <-o.ctx.Done():
			return
		case msg := <-o.queue:
			if err := o.limiter.Wait(o.ctx); err != nil {
				return
			}
			o.send(msg)
		}
	}
}

func (o *Outbox) send(msg outMsg) {
	ctx := o.ctx
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(o.ctx, o.cfg.Timeout)
		defer cancel()
	}

	err := o.relay.Publish(ctx, msg.address, msg.payload)
	if err != nil {
		o.failed.Add(1)
		log.Debug("发布失败", "address", msg.address, "err", err)
	} else {
		o.published.Add(1)
	}
	if o.cfg.OnResult != nil {
		o.cfg.OnResult(msg.address, err)
	}
}

// Stats 返回统计
func (o *Outbox) Stats() OutboxStats {
	return OutboxStats{
		Published: o.published.Load(),
		Failed:    o.failed.Load(),
		Dropped:   o.dropped.Load(),
	}
}

// Close 停止发布，未发出的消息被丢弃
func (o *Outbox) Close() error {
	o.cancel()
	o.wg.Wait()
	return nil
}
