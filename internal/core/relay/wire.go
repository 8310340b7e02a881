package relay

import "encoding/json"

// websocket 中继协议的操作
const (
	OpSubscribe   = "sub"
	OpUnsubscribe = "unsub"
	OpPublish     = "pub"
	OpMessage     = "msg"
)

// WireFrame websocket 中继协议帧
//
// 客户端发送 sub/unsub/pub，服务端推送 msg。
type WireFrame struct {
	Op      string          `json:"op"`
	Address string          `json:"address"`
	Body    json.RawMessage `json:"body,omitempty"`
}

// SSEEnvelope SSE 事件数据，payload 位于 body 字段（与 smee.io 一致）
type SSEEnvelope struct {
	Body      json.RawMessage `json:"body"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// ValidatePayload 检查 payload 是否为 JSON 文档
func ValidatePayload(payload []byte) error {
	if !json.Valid(payload) {
		return ErrInvalidPayload
	}
	return nil
}
