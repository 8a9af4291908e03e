package alert

import (
	"context"
	"log/slog"
	"time"

	"github.com/gowvp/sentinel/internal/conf"
	"github.com/gowvp/sentinel/internal/media"
)

// Alert 一条待投递的告警
type Alert struct {
	Label    string    `json:"label"`
	Conf     float64   `json:"conf"`
	CameraID string    `json:"camera_id"`
	At       time.Time `json:"at"`
	Snapshot []byte    `json:"-"` // JPEG 快照，可为空
}

// Sender 告警出口，webhook 与 mqtt 各自实现
type Sender interface {
	Name() string
	Send(ctx context.Context, a Alert) error
}

// Core 告警领域，限流判定在调用方 goroutine 内完成，投递交给工作池
type Core struct {
	enabled    bool
	throttler  *Throttler
	dispatcher *Dispatcher
}

func NewCore(cfg *conf.Notify, senders ...Sender) *Core {
	return &Core{
		enabled:    cfg.Enabled && len(senders) > 0,
		throttler:  NewThrottler(cfg.Cooldown.Duration()),
		dispatcher: NewDispatcher(cfg.QueueSize, cfg.Workers, senders...),
	}
}

// Start 启动投递工作池
func (c *Core) Start(ctx context.Context) {
	if c.enabled {
		c.dispatcher.Start(ctx)
	}
}

// Wait 等待投递工作池退出，仅在进程收尾时调用
func (c *Core) Wait() {
	if c.enabled {
		c.dispatcher.Wait()
	}
}

// MaybeFire 冷却窗口外的目标触发告警，窗口内静默返回
// 快照编码只在确定要发送后进行
func (c *Core) MaybeFire(label string, conf float64, cameraID string, frame *media.Frame) {
	if !c.enabled {
		return
	}
	if !c.throttler.Allow(label) {
		return
	}

	var snapshot []byte
	if frame != nil {
		buf, err := frame.EncodeJPEG(85)
		if err != nil {
			slog.Error("failed to encode alert snapshot", "err", err)
		} else {
			snapshot = buf
		}
	}

	c.dispatcher.Publish(Alert{
		Label:    label,
		Conf:     conf,
		CameraID: cameraID,
		At:       time.Now(),
		Snapshot: snapshot,
	})
}
