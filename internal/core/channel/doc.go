// Package channel 在已打开的数据通道上运行文档与在线状态的复制协议
//
// 每条通道上传输三种 JSON 文本帧：
//
//	{"type": "sync", "data": <状态向量 base64>}
//	{"type": "update", "data": <文档增量 base64>}
//	{"type": "awareness", "data": <在线状态增量 base64>}
//
// 通道打开后立即发送 sync，之后每 5~15 秒随机再发一次。收到 sync 时回复
// 对方缺少的文档增量，并附带全部已知在线状态。收到的 update/awareness 以
// remote 来源应用，因此不会被再次广播。
//
// 本地文档变更（非 remote 来源）广播给所有通道；在线状态只广播本节点自己
// 的条目，且只在来源为 local 时广播。
//
// 通道关闭时，对端拥有的在线状态条目在同一轮事件循环内被移除。
package channel
