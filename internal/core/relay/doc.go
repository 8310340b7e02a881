// Package relay 提供信令使用的中继通道
//
// 中继只按地址转发不透明的 JSON 消息：
//
//   - memory      进程内扇出，测试与单机多会话使用
//   - sse         smee.io 兼容：POST 发布、text/event-stream 订阅
//   - wsrelay     websocket 客户端，连接 relay/server
//   - redisrelay  Redis pub/sub
//   - server      中继服务端（websocket + POST/SSE）
//
// 本包还提供地址约定与异步发布队列 Outbox。
package relay
