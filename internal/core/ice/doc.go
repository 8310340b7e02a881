// Package ice 管理建立连接时使用的 STUN 服务器
//
// Pool 每次为新连接随机挑选若干服务器（允许重复）；Prober 用 STUN Binding
// 请求探测服务器，可在启动时剔除不可达的服务器。
package ice
