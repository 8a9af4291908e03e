package intake

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gowvp/sentinel/internal/media"
)

// 漏桶排水的宽限窗口，窗口内持续到达的帧只保留最后一帧
const defaultGraceWindow = time.Millisecond

// FrameSource 帧来源，媒体轨道解码链路与测试桩都实现它
type FrameSource interface {
	// ReadFrame 阻塞到有帧可读，ctx 取消或超时返回相应错误
	ReadFrame(ctx context.Context) (*media.Frame, error)
}

// Intake 单摄像头的进帧循环
// 以漏桶方式丢弃积压帧，保证消费侧永远拿到最新画面
type Intake struct {
	cameraID string
	source   FrameSource
	register *Register
	grace    time.Duration

	// onFrame 处理一帧并返回要发布到寄存器的帧（通常是标注后的副本）
	onFrame func(*media.Frame) *media.Frame
	// onExit 轨道终止时回调，负责把摄像头移出在线集合
	onExit func(error)
}

type Option func(*Intake)

func WithGraceWindow(d time.Duration) Option {
	return func(i *Intake) { i.grace = d }
}

func WithOnFrame(fn func(*media.Frame) *media.Frame) Option {
	return func(i *Intake) { i.onFrame = fn }
}

func WithOnExit(fn func(error)) Option {
	return func(i *Intake) { i.onExit = fn }
}

func New(cameraID string, source FrameSource, register *Register, opts ...Option) *Intake {
	i := Intake{
		cameraID: cameraID,
		source:   source,
		register: register,
		grace:    defaultGraceWindow,
	}
	for _, opt := range opts {
		opt(&i)
	}
	return &i
}

// Drain 阻塞取一帧，随后在宽限窗口内非阻塞地吞掉后续到达的帧，只返回最后一帧
// 被丢弃的帧不做任何处理，用信息损失换端到端时延上界
func (i *Intake) Drain(ctx context.Context) (*media.Frame, error) {
	frame, err := i.source.ReadFrame(ctx)
	if err != nil {
		return nil, err
	}

	drained := 0
	for {
		graceCtx, cancel := context.WithTimeout(ctx, i.grace)
		newer, err := i.source.ReadFrame(graceCtx)
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			// 其他错误留给下一次 Drain 暴露，本次先交付已有帧
			break
		}
		frame = newer
		drained++
	}
	if drained > 0 {
		slog.Debug("leaky bucket drained stale frames", "camera_id", i.cameraID, "count", drained)
	}
	return frame, nil
}

// Run 持续收帧直到轨道终止或 ctx 取消
// 轨道错误不重启，边缘侧的恢复由会话控制器负责
func (i *Intake) Run(ctx context.Context) {
	var frameCount uint64
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := i.Drain(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("track ended or errored", "camera_id", i.cameraID, "err", err)
			i.register.Drop(i.cameraID)
			if i.onExit != nil {
				i.onExit(err)
			}
			return
		}

		frameCount++
		if frameCount%30 == 0 {
			slog.Debug("frame intake progress",
				"camera_id", i.cameraID,
				"frames", frameCount,
				"latency_ms", time.Since(frame.Timestamp).Milliseconds(),
			)
		}

		out := frame
		if i.onFrame != nil {
			out = i.onFrame(frame)
		}
		i.register.Set(out)
	}
}
