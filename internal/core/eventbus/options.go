package eventbus

// subscriptionSettings 订阅设置
type subscriptionSettings struct {
	Buffer int
}

// SubscriptionOpt 订阅选项
type SubscriptionOpt func(*subscriptionSettings)

// BufSize 设置订阅缓冲区大小
func BufSize(size int) SubscriptionOpt {
	return func(s *subscriptionSettings) {
		s.Buffer = size
	}
}

// emitterSettings 发射器设置
type emitterSettings struct {
	Stateful bool
}

// EmitterOpt 发射器选项
type EmitterOpt func(*emitterSettings)

// Stateful 发射器保留最后一个事件，新订阅者会立即收到它
func Stateful() EmitterOpt {
	return func(s *emitterSettings) {
		s.Stateful = true
	}
}
