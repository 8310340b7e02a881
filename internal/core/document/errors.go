package document

import "errors"

var (
	// ErrMalformedUpdate 无法解码的更新或状态向量
	ErrMalformedUpdate = errors.New("malformed document update")

	// ErrProtocolViolation delta 中出现 retain/insert/delete 之外的操作
	ErrProtocolViolation = errors.New("unexpected delta operation")

	// ErrOutOfRange 位置超出文本范围
	ErrOutOfRange = errors.New("position out of range")
)
