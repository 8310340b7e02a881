// Package mocks 提供统一的测试 Mock 实现
//
// # 传输 Mock
//
//   - Network: 进程内的假 WebRTC 网络，offer/answer 通过 SDP 中的编号配对
//   - MockTransport: 模拟 interfaces.TransportFactory，每个节点一个
//   - MockPeerConnection: 模拟 interfaces.PeerConnection，回调在独立 goroutine 上触发
//   - MockDataChannel: 模拟 interfaces.DataChannel，成对出现，可靠有序
//
// # 中继 Mock
//
//   - MockRelay: 模拟 interfaces.Relay，记录所有发布，测试可向订阅注入消息
//
// # 设计原则
//
// 1. 函数式注入: 每个 Mock 都支持通过 XxxFunc 字段注入自定义行为
// 2. 调用记录: 关键 Mock 记录调用历史，便于验证测试行为
// 3. 简化实现: 只模拟协商所需的最小语义（描述配对、候选、通道打开与关闭）
//
// # 使用示例
//
//	net := mocks.NewNetwork()
//	a := net.Transport("A")
//	b := net.Transport("B")
//	// 把 a、b 分别交给两个信令引擎，offer/answer 交换完成后数据通道自动打开
package mocks
