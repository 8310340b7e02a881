// Package binding 把可编辑表面与复制文档双向绑定
//
// 本地编辑写入文档，文档 delta 写回编辑器，两条路径都在同一个 zone 内执行：
// 一条路径触发的另一侧事件被直接丢弃，不会形成回环。远端 presence 以
// 选区高亮加光标标签的装饰渲染。
//
// Binding 的所有方法都必须在事件循环上调用。
package binding
