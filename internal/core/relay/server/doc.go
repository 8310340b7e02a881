// Package server 实现中继服务端
//
// 路由：
//
//	GET  /ws         websocket 发布/订阅（relay.WireFrame）
//	POST /{address}  发布 JSON payload（smee.io 兼容）
//	GET  /{address}  text/event-stream 订阅（smee.io 兼容）
//	GET  /healthz    健康检查
//
// 消息经由可替换的后端转发：单实例用 memory，多实例共享 Redis 时用 redisrelay。
package server
