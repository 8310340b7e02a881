package server

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-coedit/internal/core/relay"
)

// wsConn 一个 websocket 客户端
//
// 读 goroutine 处理 sub/unsub/pub，写 goroutine 独占连接写入。
type wsConn struct {
	s      *Server
	conn   *websocket.Conn
	client string

	ctx    context.Context
	cancel context.CancelFunc
	send   chan relay.WireFrame

	// subs 只在读 goroutine 中访问
	subs map[string]context.CancelFunc
}

func newWSConn(s *Server, conn *websocket.Conn, client string) *wsConn {
	ctx, cancel := mergeContext(context.Background(), s.ctx)
	return &wsConn{
		s:      s,
		conn:   conn,
		client: client,
		ctx:    ctx,
		cancel: cancel,
		send:   make(chan relay.WireFrame, sendQueueSize),
		subs:   make(map[string]context.CancelFunc),
	}
}

func (c *wsConn) serve() {
	gauge := c.s.metrics.Connections.WithLabelValues("websocket")
	gauge.Inc()
	defer gauge.Dec()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writeLoop()
	}()

	c.readLoop()
	c.cancel()
	for _, cancel := range c.subs {
		cancel()
	}
	<-done
	_ = c.conn.Close()
}

func (c *wsConn) readLoop() {
	c.conn.SetReadLimit(maxPayloadSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// 服务端关闭时解除阻塞的读
	stop := context.AfterFunc(c.ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket 读取失败", "client", c.client, "err", err)
			}
			return
		}
		var f relay.WireFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Address == "" {
			c.s.metrics.Rejected.WithLabelValues("frame").Inc()
			continue
		}
		c.handle(f)
	}
}

func (c *wsConn) handle(f relay.WireFrame) {
	switch f.Op {
	case relay.OpSubscribe:
		if _, ok := c.subs[f.Address]; ok {
			return
		}
		ctx, cancel := context.WithCancel(c.ctx)
		msgs, err := c.s.backend.Subscribe(ctx, f.Address)
		if err != nil {
			cancel()
			log.Warn("订阅失败", "address", f.Address, "err", err)
			return
		}
		c.subs[f.Address] = cancel
		go c.forward(ctx, f.Address, msgs)

	case relay.OpUnsubscribe:
		if cancel, ok := c.subs[f.Address]; ok {
			cancel()
			delete(c.subs, f.Address)
		}

	case relay.OpPublish:
		if err := c.s.limiter.AllowPublish(c.client); err != nil {
			c.s.metrics.Rejected.WithLabelValues("rate").Inc()
			return
		}
		if err := relay.ValidatePayload(f.Body); err != nil {
			c.s.metrics.Rejected.WithLabelValues("payload").Inc()
			return
		}
		if err := c.s.backend.Publish(c.ctx, f.Address, f.Body); err != nil {
			log.Warn("发布失败", "address", f.Address, "err", err)
			return
		}
		c.s.metrics.Published.Inc()

	default:
		c.s.metrics.Rejected.WithLabelValues("op").Inc()
	}
}

func (c *wsConn) forward(ctx context.Context, address string, msgs <-chan []byte) {
	for msg := range msgs {
		select {
		case c.send <- relay.WireFrame{Op: relay.OpMessage, Address: address, Body: msg}:
		case <-ctx.Done():
			return
		default:
			log.Warn("客户端发送队列已满，丢弃消息", "client", c.client, "address", address)
		}
	}
}

func (c *wsConn) writeLoop() {
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.cancel()
				return
			}
			c.s.metrics.Delivered.Inc()
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.cancel()
				return
			}
		}
	}
}
