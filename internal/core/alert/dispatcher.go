package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const sendTimeout = 10 * time.Second

// Dispatcher 有界队列加固定工作池的告警投递器
// 队列满时丢弃新告警并记录日志，绝不阻塞检测管线
type Dispatcher struct {
	queue   chan Alert
	senders []Sender
	workers int
	wg      sync.WaitGroup
	once    sync.Once
}

func NewDispatcher(queueSize, workers int, senders ...Sender) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 16
	}
	if workers <= 0 {
		workers = 2
	}
	return &Dispatcher{
		queue:   make(chan Alert, queueSize),
		senders: senders,
		workers: workers,
	}
}

func (d *Dispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Go(func() { d.worker(ctx) })
		}
	})
}

// Publish 非阻塞入队，队列满时丢弃
func (d *Dispatcher) Publish(a Alert) {
	select {
	case d.queue <- a:
	default:
		slog.Warn("alert queue full, dropping", "label", a.Label, "camera_id", a.CameraID)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-d.queue:
			for _, s := range d.senders {
				sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
				if err := s.Send(sendCtx, a); err != nil {
					slog.Error("failed to deliver alert", "sender", s.Name(), "label", a.Label, "err", err)
				} else {
					slog.Info("alert delivered", "sender", s.Name(), "label", a.Label, "camera_id", a.CameraID)
				}
				cancel()
			}
		}
	}
}

// Wait 等待工作池退出，仅在进程收尾时调用
func (d *Dispatcher) Wait() { d.wg.Wait() }
