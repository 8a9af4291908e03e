package alert

import (
	"sync"
	"time"
)

// Throttler 按类别限流，同一类别在冷却窗口内最多触发一次
// 限流键只看类别不看摄像头，多路摄像头共享同一冷却窗口
type Throttler struct {
	m        sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

func NewThrottler(cooldown time.Duration) *Throttler {
	return &Throttler{
		cooldown: cooldown,
		last:     make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow 判定并占用冷却窗口，返回 true 时调用方必须发送
func (t *Throttler) Allow(label string) bool {
	t.m.Lock()
	defer t.m.Unlock()

	now := t.now()
	if last, ok := t.last[label]; ok && now.Sub(last) < t.cooldown {
		return false
	}
	t.last[label] = now
	return true
}
