// Package types 定义 go-coedit 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 coedit 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 文件组织
//
//   - ids.go     - PeerID 会话身份
//   - origin.go  - Origin 变更来源标记（回声抑制）
//   - enums.go   - PeerState 连接记录状态
//   - events.go  - 事件总线上传递的事件类型
package types
