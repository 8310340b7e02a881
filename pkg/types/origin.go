package types

// Origin 变更来源标记
//
// 文档事务和 presence 变更都携带 Origin。传播路径依据它做回声抑制：
// 来自远端的变更不会被再次广播。
type Origin string

const (
	// OriginLocal 本地编辑（编辑器或本节点自身的 presence）
	OriginLocal Origin = "local"

	// OriginRemote 从对端通道收到的更新
	OriginRemote Origin = "remote"

	// OriginTimeout presence 过期清理
	OriginTimeout Origin = "timeout"
)

// String 返回字符串形式
func (o Origin) String() string {
	return string(o)
}
