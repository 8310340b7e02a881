// Package integration 多会话端到端测试
//
// 会话之间通过进程内中继交换信令，通过 mocks.Network 建立数据通道，
// 其余组件（文档、presence、绑定、信令状态机）都是真实实现。
package integration
