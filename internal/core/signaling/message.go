package signaling

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/dep2p/go-coedit/pkg/types"
)

// Kind 信令消息类别
type Kind int

const (
	// KindAnnounce 只带身份与回复地址
	KindAnnounce Kind = iota
	// KindOffer 携带 offer
	KindOffer
	// KindAnswer 携带 answer
	KindAnswer
	// KindICE 携带单个候选
	KindICE
)

// String 返回类别名，同时用作指标标签
func (k Kind) String() string {
	switch k {
	case KindAnnounce:
		return "announce"
	case KindOffer:
		return "offer"
	case KindAnswer:
		return "answer"
	case KindICE:
		return "ice"
	default:
		return "unknown"
	}
}

// Message 中继上传递的信令载荷
//
//	{ "clientId": "...", "replyUrl": "...", "offer"?: {...}, "answer"?: {...}, "ice"?: {...} }
//
// 字段可以同时出现，接收方依次处理 offer、ice、answer。
type Message struct {
	ClientID types.PeerID               `json:"clientId"`
	ReplyURL string                     `json:"replyUrl"`
	Offer    *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer   *webrtc.SessionDescription `json:"answer,omitempty"`
	ICE      *webrtc.ICECandidateInit   `json:"ice,omitempty"`
}

// Kind 返回主要类别（offer > answer > ice > announce）
func (m *Message) Kind() Kind {
	switch {
	case m.Offer != nil:
		return KindOffer
	case m.Answer != nil:
		return KindAnswer
	case m.ICE != nil:
		return KindICE
	default:
		return KindAnnounce
	}
}

// Validate 检查必填字段与描述类型
func (m *Message) Validate() error {
	if m.ClientID.IsEmpty() {
		return fmt.Errorf("%w: missing clientId", ErrMalformedMessage)
	}
	if m.ReplyURL == "" {
		return fmt.Errorf("%w: missing replyUrl", ErrMalformedMessage)
	}
	if m.Offer != nil && m.Offer.Type != webrtc.SDPTypeOffer {
		return fmt.Errorf("%w: offer has type %s", ErrMalformedMessage, m.Offer.Type)
	}
	if m.Answer != nil && m.Answer.Type != webrtc.SDPTypeAnswer {
		return fmt.Errorf("%w: answer has type %s", ErrMalformedMessage, m.Answer.Type)
	}
	return nil
}

// Encode 编码为 JSON
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeMessage 解析并校验信令载荷
func DecodeMessage(data []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}
