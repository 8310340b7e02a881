// Package transport 提供点对点连接工厂
//
// 默认实现位于 transport/webrtc；测试使用 tests/mocks 中的进程内网络。
package transport
