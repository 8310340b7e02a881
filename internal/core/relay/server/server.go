package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/r3labs/sse/v2"

	"github.com/dep2p/go-coedit/internal/core/relay"
	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

var log = logger.Logger("relay/server")

const (
	maxPayloadSize = 64 * 1024
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	sseKeepAlive   = 30 * time.Second
	sendQueueSize  = 256
)

// Config 服务端配置
type Config struct {
	Limiter LimiterConfig
	// Metrics 可为 nil
	Metrics *Metrics
}

// Server 中继服务端
type Server struct {
	backend  interfaces.Relay
	limiter  *Limiter
	metrics  *Metrics
	upgrader websocket.Upgrader
	router   *mux.Router

	events    *sse.Server
	streamSeq atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New 创建服务端，backend 的生命周期由调用方管理
func New(backend interfaces.Relay, cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		backend: backend,
		limiter: NewLimiter(cfg.Limiter),
		metrics: cfg.Metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		events: newEventServer(),
		ctx:    ctx,
		cancel: cancel,
	}
	if s.metrics == nil {
		s.metrics = NewMetrics(nil)
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebsocket).Methods(http.MethodGet)
	r.HandleFunc("/{address}", s.handlePublish).Methods(http.MethodPost)
	r.HandleFunc("/{address}", s.handleEvents).Methods(http.MethodGet)
	s.router = r
	return s
}

// newEventServer 创建 SSE 服务，流由 handleEvents 显式创建，不保留历史事件
func newEventServer() *sse.Server {
	srv := sse.New()
	srv.AutoStream = false
	srv.AutoReplay = false
	return srv
}

// Handler 返回 HTTP 处理器
func (s *Server) Handler() http.Handler {
	return s.router
}

// Limiter 返回限流器（诊断用）
func (s *Server) Limiter() *Limiter {
	return s.limiter
}

// Close 断开所有连接
func (s *Server) Close() error {
	s.cancel()
	s.wg.Wait()
	s.events.Close()
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.limiter.Stats())
}

func (s *Server) reject(w http.ResponseWriter, reason string, code int, err error) {
	s.metrics.Rejected.WithLabelValues(reason).Inc()
	http.Error(w, err.Error(), code)
}

// handlePublish POST /{address}
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	client := clientKey(r)

	if err := s.limiter.AllowPublish(client); err != nil {
		s.reject(w, "rate", http.StatusTooManyRequests, err)
		return
	}
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadSize))
	if err != nil {
		s.reject(w, "size", http.StatusRequestEntityTooLarge, err)
		return
	}
	if err := relay.ValidatePayload(payload); err != nil {
		s.reject(w, "payload", http.StatusBadRequest, err)
		return
	}
	if err := s.backend.Publish(r.Context(), address, payload); err != nil {
		log.Warn("发布失败", "address", address, "err", err)
		s.reject(w, "backend", http.StatusBadGateway, err)
		return
	}
	s.metrics.Published.Inc()

	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, "{}")
}

// handleEvents GET /{address}，以 text/event-stream 推送
//
// 每个连接在 SSE 服务中占一条独立的流，流 ID 不对外暴露。
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]
	client := clientKey(r)

	if _, ok := w.(http.Flusher); !ok {
		s.reject(w, "stream", http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}
	if err := s.limiter.AcquireConn(client); err != nil {
		s.reject(w, "conn", http.StatusServiceUnavailable, err)
		return
	}
	defer s.limiter.ReleaseConn(client)

	s.wg.Add(1)
	defer s.wg.Done()

	ctx, cancel := mergeContext(r.Context(), s.ctx)
	defer cancel()

	msgs, err := s.backend.Subscribe(ctx, address)
	if err != nil {
		s.reject(w, "backend", http.StatusBadGateway, err)
		return
	}

	gauge := s.metrics.Connections.WithLabelValues("sse")
	gauge.Inc()
	defer gauge.Dec()

	streamID := fmt.Sprintf("%s#%d", address, s.streamSeq.Add(1))
	s.events.CreateStream(streamID)
	defer s.events.RemoveStream(streamID)

	// 订阅者注册完成后 SSE 服务才写响应头，此后发布的事件不会丢
	sw := &subscribedWriter{ResponseWriter: w, subscribed: make(chan struct{})}
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		select {
		case <-sw.subscribed:
		case <-ctx.Done():
			return
		}
		s.pump(ctx, streamID, msgs)
	}()

	req := r.WithContext(ctx)
	u := *r.URL
	q := u.Query()
	q.Set("stream", streamID)
	u.RawQuery = q.Encode()
	req.URL = &u
	s.events.ServeHTTP(sw, req)

	cancel()
	<-pumpDone
}

// pump 把后端消息按 smee.io 格式发布到连接对应的流
func (s *Server) pump(ctx context.Context, streamID string, msgs <-chan []byte) {
	s.events.Publish(streamID, &sse.Event{Event: []byte("ready"), Data: []byte("{}")})

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			s.events.Publish(streamID, &sse.Event{Event: []byte("ping"), Data: []byte("{}")})
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			data, err := json.Marshal(relay.SSEEnvelope{Body: msg, Timestamp: time.Now().UnixMilli()})
			if err != nil {
				continue
			}
			s.events.Publish(streamID, &sse.Event{Data: data})
			s.metrics.Delivered.Inc()
		}
	}
}

// subscribedWriter 在首次写出成功响应时发出通知
type subscribedWriter struct {
	http.ResponseWriter
	once       sync.Once
	subscribed chan struct{}
}

func (w *subscribedWriter) notify() {
	w.once.Do(func() { close(w.subscribed) })
}

func (w *subscribedWriter) WriteHeader(code int) {
	w.ResponseWriter.WriteHeader(code)
	if code == http.StatusOK {
		w.notify()
	}
}

func (w *subscribedWriter) Flush() {
	w.ResponseWriter.(http.Flusher).Flush()
	w.notify()
}

// handleWebsocket GET /ws
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	client := clientKey(r)
	if err := s.limiter.AcquireConn(client); err != nil {
		s.reject(w, "conn", http.StatusServiceUnavailable, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.limiter.ReleaseConn(client)
		log.Debug("websocket 升级失败", "err", err)
		return
	}

	s.wg.Add(1)
	c := newWSConn(s, conn, client)
	go func() {
		defer s.wg.Done()
		defer s.limiter.ReleaseConn(client)
		c.serve()
	}()
}

// clientKey 以远端 IP 区分客户端
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// mergeContext 任一 ctx 结束时返回的 ctx 结束
func mergeContext(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
