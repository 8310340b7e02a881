// Package main 提供 coedit 命令行客户端
//
// 加入一个房间，从标准输入读取编辑命令：
//
//	coedit -room notes -name ann
//
// 普通输入行追加到文档末尾，以 : 开头的行是命令（:help 查看）。
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	coedit "github.com/dep2p/go-coedit"
	"github.com/dep2p/go-coedit/config"
	"github.com/dep2p/go-coedit/internal/util/logger"
)

var log = logger.Logger("coedit/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 命令行参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：这次运行加入哪个房间、用什么名字
//   JSON 配置文件：中继、信令、心跳等长期配置
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	// ─────────────────────────────────────────────────────────────────────
	// 会话参数
	// ─────────────────────────────────────────────────────────────────────
	room       = flag.String("room", "", "房间名（必填）")
	name       = flag.String("name", "", "显示名（默认取节点标识前 4 位）")
	color      = flag.String("color", "", "光标颜色 #rrggbb（默认随机）")
	configFile = flag.String("config", "", "配置文件路径")
	relayURL   = flag.String("relay", "", "中继地址（覆盖 COEDIT_RELAY_URL）")
	backend    = flag.String("backend", "", "中继后端 (sse/websocket/redis/memory)")
	loopback   = flag.Bool("loopback", false, "允许回环 ICE 候选（同机测试）")

	// ─────────────────────────────────────────────────────────────────────
	// 观测参数
	// ─────────────────────────────────────────────────────────────────────
	metricsAddr = flag.String("metrics", "", "Prometheus 指标监听地址，例如 :9090")
	logFile     = flag.String("log", "", "日志文件路径")
	logDir      = flag.String("log-dir", "logs", "日志目录")
	autoLog     = flag.Bool("auto-log", true, "自动生成日志文件")

	// ─────────────────────────────────────────────────────────────────────
	// 信息显示
	// ─────────────────────────────────────────────────────────────────────
	showVersion = flag.Bool("version", false, "显示版本信息")
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Parse()

	if *showVersion {
		fmt.Println(coedit.VersionInfo())
		return nil
	}

	logPath, logHandle, err := setupLogging()
	if err != nil {
		fmt.Fprintf(os.Stderr, "警告: %v\n", err)
	}
	if logHandle != nil {
		defer func() { _ = logHandle.Close() }()
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sess, err := coedit.Start(ctx, opts...)
	if err != nil {
		return fmt.Errorf("启动会话失败: %w", err)
	}
	defer func() { _ = sess.Close() }()

	printSessionInfo(sess, logPath)

	if *metricsAddr != "" {
		srv := serveMetrics(sess, *metricsAddr)
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	lines := make(chan string)
	go readLines(lines)

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n正在离开房间...")
			return nil
		case <-sess.Failed():
			return fmt.Errorf("会话失败: %w", sess.Err())
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := execute(sess, line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "  ✗ %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// buildOptions 合并配置文件与命令行参数
func buildOptions() ([]coedit.Option, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *relayURL != "" {
		cfg.Relay = cfg.Relay.WithURL(*relayURL)
	}
	if *backend != "" {
		cfg.Relay = cfg.Relay.WithBackend(*backend)
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
	}

	opts := []coedit.Option{coedit.WithConfig(cfg)}
	if *room != "" {
		opts = append(opts, coedit.WithRoom(*room))
	}
	if *name != "" {
		opts = append(opts, coedit.WithDisplayName(*name))
	}
	if *color != "" {
		opts = append(opts, coedit.WithColor(*color))
	}
	if *loopback {
		opts = append(opts, coedit.WithLoopback())
	}
	return opts, nil
}

// setupLogging 把日志写入文件，标准输出留给文档内容
func setupLogging() (string, *os.File, error) {
	if !*autoLog && *logFile == "" {
		return "", nil, nil
	}

	logPath := *logFile
	if logPath == "" {
		timestamp := time.Now().Format("20060102-150405")
		logPath = filepath.Join(*logDir, fmt.Sprintf("coedit-%s-%d.log", timestamp, os.Getpid()))
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0750); err != nil {
		return "", nil, fmt.Errorf("创建日志目录失败: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return "", nil, fmt.Errorf("打开日志文件失败: %w", err)
	}
	logger.SetOutput(file)
	return logPath, file, nil
}

// serveMetrics 在 addr 上暴露 /metrics
func serveMetrics(sess *coedit.Session, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(sess.Metrics(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("指标服务退出", "addr", addr, "error", err)
		}
	}()
	fmt.Printf("指标: http://%s/metrics\n", addr)
	return srv
}

// readLines 逐行读取标准输入，EOF 时关闭 out
func readLines(out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// printSessionInfo 打印会话信息
func printSessionInfo(sess *coedit.Session, logPath string) {
	fmt.Println("╔══════════════════════════════════════════════════════╗")
	fmt.Println("║                    coedit                            ║")
	fmt.Println("╚══════════════════════════════════════════════════════╝")
	fmt.Printf("  房间: %s\n", sess.Room())
	fmt.Printf("  节点: %s\n", sess.ID())
	fmt.Printf("  中继: %s (%s)\n", sess.Config().Relay.URL, sess.Config().Relay.Backend)
	if logPath != "" {
		fmt.Printf("  日志: %s\n", logPath)
	}
	fmt.Println("输入文本追加到文档末尾，:help 查看命令，Ctrl+C 退出")
}
