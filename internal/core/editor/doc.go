// Package editor 提供内存中的可编辑文本表面
//
// Buffer 实现 interfaces.Surface：行列从 1 开始，偏移以 rune 计，
// 一批编辑的偏移都相对于这批编辑之前的文本。命令行客户端与测试用它
// 代替图形编辑器。
package editor
