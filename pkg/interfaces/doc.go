// Package interfaces 定义 go-coedit 与外部协作者之间的接口
//
//   - relay.go      - 中继通道（按地址发布/订阅不透明消息）
//   - transport.go  - 点对点传输（PeerConnection / DataChannel）
//   - editor.go     - 可编辑文本表面（编辑器）
//
// 内部组件只依赖这里的接口，具体实现位于 internal/core 下，
// 测试替身位于 tests/mocks。
package interfaces
