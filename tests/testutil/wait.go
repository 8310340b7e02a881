package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	coedit "github.com/dep2p/go-coedit"
)

// WaitForCondition 等待条件满足或超时
//
// 参数：
//   - t: 测试对象
//   - timeout: 超时时间
//   - interval: 检查间隔
//   - condition: 条件函数，返回 true 表示条件满足
//
// 返回：条件是否满足（超时返回 false）
func WaitForCondition(t *testing.T, timeout time.Duration, interval time.Duration, condition func() bool) bool {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// 立即检查一次
	if condition() {
		return true
	}

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if condition() {
				return true
			}
		}
	}
}

// WaitForConditionOrFail 等待条件满足，超时则 fail 测试
func WaitForConditionOrFail(t *testing.T, timeout time.Duration, interval time.Duration, condition func() bool, msg string) {
	t.Helper()

	if !WaitForCondition(t, timeout, interval, condition) {
		t.Fatalf("等待超时: %s", msg)
	}
}

// Eventually 在指定时间内重试条件检查
//
// 使用默认间隔 10ms。
//
// 示例:
//
//	testutil.Eventually(t, 5*time.Second, func() bool {
//	    return len(peers) > 0
//	}, "应该建立连接")
func Eventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	WaitForConditionOrFail(t, timeout, 10*time.Millisecond, condition, msg)
}

// WaitForText 等待会话文本变为 want
func WaitForText(t *testing.T, sess *coedit.Session, want string, timeout time.Duration) {
	t.Helper()

	var last string
	ok := WaitForCondition(t, timeout, 10*time.Millisecond, func() bool {
		text, err := sess.Text()
		if err != nil {
			return false
		}
		last = text
		return text == want
	})
	if !ok {
		t.Fatalf("等待文本超时: peer=%s want=%q got=%q", sess.ID(), want, last)
	}
}

// WaitForConverged 等待所有会话文本一致，返回一致后的文本
func WaitForConverged(t *testing.T, timeout time.Duration, sessions ...*coedit.Session) string {
	t.Helper()

	var texts []string
	ok := WaitForCondition(t, timeout, 10*time.Millisecond, func() bool {
		texts = texts[:0]
		for _, s := range sessions {
			text, err := s.Text()
			if err != nil {
				return false
			}
			texts = append(texts, text)
		}
		for _, text := range texts[1:] {
			if text != texts[0] {
				return false
			}
		}
		return true
	})
	if !ok {
		t.Fatalf("等待收敛超时: %s", fmt.Sprintf("%q", texts))
	}
	return texts[0]
}

// WaitForChannels 等待会话打开 n 个数据通道
func WaitForChannels(t *testing.T, sess *coedit.Session, n int, timeout time.Duration) {
	t.Helper()

	Eventually(t, timeout, func() bool {
		channels, err := sess.Channels()
		return err == nil && len(channels) >= n
	}, fmt.Sprintf("等待 %s 打开 %d 个通道", sess.ID(), n))
}
