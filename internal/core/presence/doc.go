// Package presence 实现协同编辑的 awareness（在线状态）存储
//
// 每个副本（以文档 ClientID 区分）拥有一条 State：显示名、颜色和相对选区。
// 条目只由所属副本修改，每次修改递增该条目的时钟；远端更新只有在时钟更新时
// 才被接受，因此重复或乱序到达的 awareness 帧不会回退状态。
//
// 本地条目每 RenewInterval 重新广播一次；超过 OutdatedTimeout 未刷新的远端
// 条目以 types.OriginTimeout 为来源被移除。
//
// Store 不是并发安全的，所有访问都应在事件循环 goroutine 上进行。
package presence
