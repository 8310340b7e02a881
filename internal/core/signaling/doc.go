// Package signaling 实现基于中继的对等发现与连接协商
//
// 每个节点同时扮演两种角色：
//
//   - 发起方：收到房间地址上的 Announce 后创建连接记录、主动创建数据通道、
//     向对方回复地址发送 Offer，随后逐个发送收集到的候选
//   - 应答方：在自己的回复地址上收到 Offer 后创建连接记录、应用远端描述、
//     回复 Answer，并等待对方的数据通道
//
// 每个远端节点最多对应一条连接记录，重复的 Announce/Offer 被忽略；
// 自己发出的消息（中继会回显）一律忽略。先于记录到达的候选暂存一段时间，
// 记录创建时立即应用，超时则丢弃。
//
// 记录状态只会前进：negotiating → connected → closed。协商失败不在原地重试，
// 周期性 Announce 会在下一轮自然重新发现对方。
//
// Engine 的所有状态只在事件循环上访问；pion 回调与中继消息都先投递到循环。
package signaling
