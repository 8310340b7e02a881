package interfaces

import "context"

// Relay 中继通道
//
// 语义为至少一次、无序、扇出：发布到某地址的消息会送达该地址当前的每个
// 订阅者，包括发布者自己。payload 必须是一个 JSON 文档。
type Relay interface {
	// Publish 向 address 发布消息，不确认送达
	Publish(ctx context.Context, address string, payload []byte) error

	// Subscribe 订阅 address，ctx 结束或 Relay 关闭时通道被关闭
	Subscribe(ctx context.Context, address string) (<-chan []byte, error)

	// Close 关闭中继及其全部订阅
	Close() error
}
