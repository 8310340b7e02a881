// Package eventbus 实现进程内的类型化事件总线
//
// 会话内的组件通过事件总线发布生命周期事件，例如信令引擎发布
// types.EvtPeerConnected / types.EvtPeerDisconnected，文档绑定发布 types.EvtFatal。
// 订阅方（会话门面、命令行工具）以 channel 方式异步消费，慢消费者的事件会被丢弃，
// 发布方永远不会被阻塞。
//
// 使用示例:
//
//	sub, _ := bus.Subscribe(new(types.EvtPeerConnected))
//	defer sub.Close()
//	for evt := range sub.Out() {
//	    e := evt.(types.EvtPeerConnected)
//	    ...
//	}
package eventbus
