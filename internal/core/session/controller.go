package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/gowvp/sentinel/internal/core/sentinel"
	"github.com/gowvp/sentinel/internal/media"
)

const (
	// 固定 5 秒重连间隔，不做指数退避：断网是常态而不是故障
	defaultBackoff      = 5 * time.Second
	defaultPollInterval = time.Second
)

// MediaSession 受控的媒体会话，PeerSession 实现
type MediaSession interface {
	State() string
	Connect(ctx context.Context) error
	Close() error
}

// FrameGrabber DDIL 模式下直接从采集链路取一帧
type FrameGrabber interface {
	Grab(ctx context.Context) (*media.Frame, error)
}

// Controller 会话状态机
// 连接正常时只轮询状态，断链后每轮先尝试重连，
// 失败则做一次本地动检（静默值守），命中写入待同步日志
type Controller struct {
	session  MediaSession
	grabber  FrameGrabber
	detector *sentinel.MotionDetector
	journal  *sentinel.Journal
	backoff  time.Duration
	poll     time.Duration
}

type Option func(*Controller)

func WithBackoff(d time.Duration) Option {
	return func(c *Controller) { c.backoff = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.poll = d }
}

func NewController(session MediaSession, grabber FrameGrabber, detector *sentinel.MotionDetector, journal *sentinel.Journal, opts ...Option) *Controller {
	c := Controller{
		session:  session,
		grabber:  grabber,
		detector: detector,
		journal:  journal,
		backoff:  defaultBackoff,
		poll:     defaultPollInterval,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return &c
}

// Run 阻塞运行状态机直到 ctx 取消
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = c.session.Close()
			return
		default:
		}
		c.iterate(ctx)
	}
}

// iterate 单轮状态机，panic 不允许击穿主循环
func (c *Controller) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("session loop panic", "err", r)
			sleepCtx(ctx, c.backoff)
		}
	}()

	switch state := c.session.State(); state {
	case "new", "disconnected", "failed", "closed":
		slog.Warn("connection down, entering silent watch", "state", state)
		if err := c.session.Connect(ctx); err != nil {
			slog.Warn("reconnect attempt failed", "err", err)
			c.silentWatch(ctx)
			sleepCtx(ctx, c.backoff)
			return
		}
		slog.Info("reconnected to server")
		// 新会话从头学习背景
		c.detector.Reset()
	default:
		sleepCtx(ctx, c.poll)
	}
}

// silentWatch 一次本地动检，命中落盘
func (c *Controller) silentWatch(ctx context.Context) {
	frame, err := c.grabber.Grab(ctx)
	if err != nil {
		slog.Error("silent watch grab failed", "err", err)
		return
	}
	ratio, moved, err := c.detector.Detect(frame)
	if err != nil {
		slog.Error("silent watch detect failed", "err", err)
		return
	}
	if !moved {
		return
	}
	slog.Warn("silent watch motion confirmed", "ratio", ratio)
	if err := c.journal.Append(ratio); err != nil {
		slog.Error("failed to journal motion event", "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
