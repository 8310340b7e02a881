// Package webrtc 用 pion/webrtc 实现 interfaces.TransportFactory
//
// pion 内部日志经 LoggerFactory 转入 slog，子系统名为 webrtc/<scope>。
package webrtc
