package pipeline

import (
	"context"
	"log/slog"

	"github.com/gowvp/sentinel/internal/media"
)

const defaultInferenceInterval = 5

type result struct {
	dets []Detection
	err  error
}

// Processor 单摄像头的检测管线
// 推理异步执行且同一时刻最多一个任务在途，每帧都把缓存的检测框画上去
// 非并发安全，由进帧循环独占调用
type Processor struct {
	cameraID   string
	detector   Detector
	tracker    *Tracker
	lifecycle  *Lifecycle
	interval   uint64
	frameCount uint64
	pending    chan result
	cached     []TrackedDetection
}

func NewProcessor(cameraID string, detector Detector, lifecycle *Lifecycle, interval int) *Processor {
	if interval <= 0 {
		interval = defaultInferenceInterval
	}
	return &Processor{
		cameraID:  cameraID,
		detector:  detector,
		tracker:   NewTracker(),
		lifecycle: lifecycle,
		interval:  uint64(interval),
	}
}

// Process 处理一帧，返回带标注的副本（无检测框时返回原帧）
func (p *Processor) Process(ctx context.Context, frame *media.Frame) *media.Frame {
	p.frameCount++

	// 收割已完成的推理任务
	if p.pending != nil {
		select {
		case res := <-p.pending:
			p.pending = nil
			if res.err != nil {
				// 推理失败按本轮无检测处理，缓存框清空
				slog.Warn("inference failed", "camera_id", p.cameraID, "err", res.err)
				p.cached = nil
			} else {
				p.cached = p.tracker.Update(res.dets)
				p.lifecycle.Observe(ctx, p.cached, frame)
			}
		default:
		}
	}

	// 每 N 帧提交一次，且前一个任务必须已经结束
	if p.frameCount%p.interval == 0 && p.pending == nil {
		ch := make(chan result, 1)
		p.pending = ch
		job := frame.Clone()
		go func() {
			dets, err := p.detector.Detect(ctx, job)
			ch <- result{dets: dets, err: err}
		}()
	}

	if len(p.cached) == 0 {
		return frame
	}
	return drawDetections(frame, p.cached)
}

// ActiveTracks 透传生命周期表的存活轨迹数
func (p *Processor) ActiveTracks() int {
	if p.lifecycle == nil {
		return 0
	}
	return p.lifecycle.ActiveTracks()
}
