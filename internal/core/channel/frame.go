package channel

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownFrameType 帧类型不是 sync/update/awareness
	ErrUnknownFrameType = errors.New("unknown frame type")

	// ErrMalformedFrame 帧无法解析
	ErrMalformedFrame = errors.New("malformed frame")
)

// FrameType 帧类型
type FrameType string

const (
	// FrameSync 状态向量
	FrameSync FrameType = "sync"
	// FrameUpdate 文档增量
	FrameUpdate FrameType = "update"
	// FrameAwareness 在线状态增量
	FrameAwareness FrameType = "awareness"
)

// Frame 通道帧：SyncFrame、UpdateFrame 或 AwarenessFrame
type Frame interface {
	Type() FrameType
	payload() []byte
}

// SyncFrame 携带发送方的状态向量
type SyncFrame struct {
	StateVector []byte
}

// UpdateFrame 携带文档增量
type UpdateFrame struct {
	Update []byte
}

// AwarenessFrame 携带在线状态增量
type AwarenessFrame struct {
	Update []byte
}

// Type 返回帧类型
func (SyncFrame) Type() FrameType { return FrameSync }

// Type 返回帧类型
func (UpdateFrame) Type() FrameType { return FrameUpdate }

// Type 返回帧类型
func (AwarenessFrame) Type() FrameType { return FrameAwareness }

func (f SyncFrame) payload() []byte { return f.StateVector }

func (f UpdateFrame) payload() []byte { return f.Update }

func (f AwarenessFrame) payload() []byte { return f.Update }

// wireFrame JSON 形式，[]byte 按标准 base64 编码
type wireFrame struct {
	Type FrameType `json:"type"`
	Data []byte    `json:"data,omitempty"`
}

// EncodeFrame 编码为 JSON 文本
func EncodeFrame(f Frame) (string, error) {
	data, err := json.Marshal(wireFrame{Type: f.Type(), Data: f.payload()})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeFrame 解析 JSON 文本帧
func DecodeFrame(data []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch w.Type {
	case FrameSync:
		return SyncFrame{StateVector: w.Data}, nil
	case FrameUpdate:
		return UpdateFrame{Update: w.Data}, nil
	case FrameAwareness:
		return AwarenessFrame{Update: w.Data}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrameType, w.Type)
	}
}
