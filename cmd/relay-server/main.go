// Package main 提供独立的信令中继服务器
//
// 中继只转发信令消息（announce/offer/answer/ice），不接触文档内容。
// 同时提供 smee.io 兼容的 SSE 接口与 websocket 接口。
//
// 使用方法:
//
//	relay-server -listen :3000
//
// 多实例部署时共享同一个 Redis：
//
//	relay-server -listen :3000 -redis localhost:6379
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dep2p/go-coedit"
	"github.com/dep2p/go-coedit/internal/core/relay/memory"
	"github.com/dep2p/go-coedit/internal/core/relay/redisrelay"
	"github.com/dep2p/go-coedit/internal/core/relay/server"
	"github.com/dep2p/go-coedit/internal/util/logger"
	"github.com/dep2p/go-coedit/pkg/interfaces"
)

var log = logger.Logger("relay-server")

func main() {
	if err := run(); err != nil {
		fmt.Printf("❌ 错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 解析命令行参数
	listen := flag.String("listen", ":3000", "监听地址")
	redisAddr := flag.String("redis", "", "Redis 地址（为空时使用进程内后端）")
	strict := flag.Bool("strict", false, "启用公共中继限流")
	maxConns := flag.Int("max-conns", 0, "最大连接数（0 = 不限制，-strict 时为 1024）")
	flag.Parse()

	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║            coedit Relay Server                       ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")
	fmt.Println(coedit.VersionInfo())
	fmt.Println()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	backend, err := openBackend(ctx, *redisAddr)
	if err != nil {
		return fmt.Errorf("创建中继后端失败: %w", err)
	}
	defer func() { _ = backend.Close() }()

	limits := server.DefaultLimiterConfig()
	if *strict {
		limits = server.StrictLimiterConfig()
	}
	if *maxConns > 0 {
		limits.MaxConnections = *maxConns
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	srv := server.New(backend, server.Config{
		Limiter: limits,
		Metrics: server.NewMetrics(reg),
	})
	defer func() { _ = srv.Close() }()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", srv.Handler())

	httpSrv := &http.Server{
		Addr:              *listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	printServerInfo(*listen, *redisAddr, limits)

	// 启动统计报告
	go reportStats(ctx, srv)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("监听失败: %w", err)
		}
	}

	fmt.Println("\n正在关闭 Relay 服务器...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	// 先断开长连接，否则 Shutdown 会等待 SSE 与 websocket 结束
	_ = srv.Close()
	return httpSrv.Shutdown(shutdownCtx)
}

// openBackend 按参数选择后端
func openBackend(ctx context.Context, redisAddr string) (interfaces.Relay, error) {
	if redisAddr == "" {
		return memory.New(), nil
	}
	return redisrelay.Dial(ctx, redisAddr)
}

// printServerInfo 打印服务器信息
func printServerInfo(listen, redisAddr string, limits server.LimiterConfig) {
	backend := "memory"
	if redisAddr != "" {
		backend = "redis " + redisAddr
	}
	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║                    服务器信息                         ║")
	fmt.Println("╠══════════════════════════════════════════════════════╣")
	fmt.Printf("║ 监听地址: %s\n", listen)
	fmt.Printf("║ 后端: %s\n", backend)
	fmt.Printf("║ 最大连接数: %d\n", limits.MaxConnections)
	fmt.Printf("║ 单客户端发布速率: %.0f/s\n", limits.PublishRate)
	fmt.Println("╚══════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("客户端使用：")
	fmt.Printf("  coedit -relay http://<host>%s -backend sse\n", listen)
	fmt.Printf("  coedit -relay ws://<host>%s/ws -backend websocket\n", listen)
	fmt.Println("按 Ctrl+C 停止服务器")
}

// reportStats 定期报告统计信息
func reportStats(ctx context.Context, srv *server.Server) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := srv.Limiter().Stats()
			log.Info("中继统计", "connections", stats.Connections, "clients", stats.UniqueClients)
		}
	}
}
