package coedit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/core/binding"
	"github.com/dep2p/go-coedit/internal/core/channel"
	"github.com/dep2p/go-coedit/internal/core/document"
	"github.com/dep2p/go-coedit/internal/core/eventbus"
	"github.com/dep2p/go-coedit/internal/core/eventloop"
	"github.com/dep2p/go-coedit/internal/core/metrics"
	"github.com/dep2p/go-coedit/internal/core/presence"
	"github.com/dep2p/go-coedit/internal/core/signaling"
	"github.com/dep2p/go-coedit/internal/util/colorutil"
	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/pkg/interfaces"
	"github.com/dep2p/go-coedit/pkg/types"
)

var log = logger.Logger("coedit")

const (
	// startTimeout 启动超时
	startTimeout = 30 * time.Second

	// stopTimeout 关闭超时
	stopTimeout = 10 * time.Second
)

// Session 一个房间内的协同编辑会话
//
// 会话持有一份复制文档、本地 presence 状态和到房间内其他节点的连接。
// 所有方法都是并发安全的，内部状态只在事件循环上访问。
type Session struct {
	mu     sync.Mutex
	closed bool

	cfg  *config.Config
	peer types.PeerID
	app  *fx.App

	loop     *eventloop.Loop
	bus      *eventbus.Bus
	doc      *document.Doc
	presence *presence.Store
	channels *channel.Manager
	engine   *signaling.Engine
	surface  interfaces.Surface
	binding  *binding.Binding
	metrics  *metrics.Metrics

	fatalSub *eventbus.Subscription
	errMu    sync.Mutex
	err      error
	failed   chan struct{}
}

// Start 加入房间并开始同步
//
// 返回时已订阅房间地址并发出第一次 announce。
func Start(ctx context.Context, opts ...Option) (*Session, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	cfg, err := o.apply()
	if err != nil {
		return nil, err
	}

	peer := types.PeerID(cfg.Identity.PeerID)
	if peer == "" {
		peer = types.NewPeerID()
	}

	s := &Session{
		cfg:    cfg,
		peer:   peer,
		failed: make(chan struct{}),
	}

	// ════════════════════════════════════════════════════════════════════════
	// Phase 1: 组装组件
	// ════════════════════════════════════════════════════════════════════════
	s.app = buildFxApp(cfg, peer, o, s)
	if err := s.app.Err(); err != nil {
		return nil, fmt.Errorf("build session: %w", err)
	}

	// ════════════════════════════════════════════════════════════════════════
	// Phase 2: 本地 presence 与致命错误订阅
	// ════════════════════════════════════════════════════════════════════════
	name := cfg.Identity.DisplayName
	if name == "" {
		name = peer.ShortName()
	}
	color := cfg.Identity.Color
	if color == "" {
		color = colorutil.RandomRGB()
	}
	if err := s.loop.Do(func() {
		s.presence.SetLocalState(&presence.State{PeerID: peer, Name: name, Color: color})
	}); err != nil {
		return nil, err
	}

	sub, err := s.bus.Subscribe(new(types.EvtFatal))
	if err != nil {
		return nil, err
	}
	s.fatalSub = sub
	go s.watchFatal(sub)

	// ════════════════════════════════════════════════════════════════════════
	// Phase 3: 启动 Fx 应用
	// ════════════════════════════════════════════════════════════════════════
	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := s.app.Start(startCtx); err != nil {
		log.Error("会话启动失败", "error", err)
		_ = sub.Close()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		return nil, multierr.Append(fmt.Errorf("start session: %w", err), s.app.Stop(stopCtx))
	}

	log.Info("会话已启动",
		"peer", peer,
		"room", cfg.Room,
		"name", name,
		"relay", cfg.Relay.Backend)
	return s, nil
}

// watchFatal 记录第一个致命错误
func (s *Session) watchFatal(sub *eventbus.Subscription) {
	for e := range sub.Out() {
		evt, ok := e.(types.EvtFatal)
		if !ok {
			if p, isPtr := e.(*types.EvtFatal); isPtr && p != nil {
				evt, ok = *p, true
			}
		}
		if !ok {
			continue
		}
		log.Error("会话出现不可恢复错误", "error", evt.Err)
		s.errMu.Lock()
		if s.err == nil {
			s.err = evt.Err
			close(s.failed)
		}
		s.errMu.Unlock()
	}
}

// ID 返回本节点标识
func (s *Session) ID() types.PeerID {
	return s.peer
}

// Room 返回房间名
func (s *Session) Room() string {
	return s.cfg.Room
}

// Config 返回会话使用的配置副本
func (s *Session) Config() *config.Config {
	return config.CloneConfig(s.cfg)
}

// Err 返回第一个致命错误
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Failed 出现致命错误后关闭
func (s *Session) Failed() <-chan struct{} {
	return s.failed
}

// Close 离开房间并释放全部资源
//
// 关闭连接、停止 announce 与心跳、移除远端光标。可重复调用。
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	log.Info("正在关闭会话", "peer", s.peer)

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	var errs error
	errs = multierr.Append(errs, s.app.Stop(ctx))
	if s.fatalSub != nil {
		errs = multierr.Append(errs, s.fatalSub.Close())
	}
	if errs != nil {
		log.Warn("关闭会话时出错", "error", errs)
	}
	return errs
}

// do 在事件循环上执行 fn，会话关闭后返回 ErrSessionClosed
func (s *Session) do(fn func()) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrSessionClosed
	}
	if err := s.loop.Do(fn); err != nil {
		return ErrSessionClosed
	}
	return nil
}
