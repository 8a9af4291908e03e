package edge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gowvp/sentinel/internal/conf"
	"github.com/gowvp/sentinel/internal/media"
	"github.com/gowvp/sentinel/pkg/ffstream"
)

const grabTimeout = 2 * time.Second

// Agent 摄像头侧采集与编码的聚合体
// 编码器分辨率在进程生命周期内固定，采集分辨率可在线调整，
// 尺寸不一致时泵协程缩放到编码器尺寸再写入
type Agent struct {
	cfg conf.Camera
	id  string // 帧上携带的摄像头标识，数字编号转十进制字符串

	m       sync.Mutex
	capture *ffstream.Capture
	width   int
	height  int

	encoder *ffstream.Encoder
}

func NewAgent(cfg conf.Camera) (*Agent, error) {
	id := strconv.Itoa(cfg.ID)
	capture, err := ffstream.NewCapture(ffstream.CaptureConfig{
		Input:  cfg.Input,
		Width:  cfg.Width,
		Height: cfg.Height,
		FPS:    cfg.FPS,
		Name:   id,
	})
	if err != nil {
		return nil, err
	}
	encoder, err := ffstream.NewEncoder(ffstream.EncoderConfig{
		Width:  cfg.Width,
		Height: cfg.Height,
		FPS:    cfg.FPS,
	})
	if err != nil {
		return nil, err
	}
	return &Agent{
		cfg:     cfg,
		id:      id,
		capture: capture,
		width:   cfg.Width,
		height:  cfg.Height,
		encoder: encoder,
	}, nil
}

// Start 启动采集与编码，并在后台持续把裸帧泵入编码器
func (a *Agent) Start(ctx context.Context) error {
	if err := a.capture.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	if err := a.encoder.Start(); err != nil {
		_ = a.capture.Stop()
		return fmt.Errorf("start encoder: %w", err)
	}
	go a.pump(ctx)
	return nil
}

// pump 采集到编码的泵协程
// 采集器可能被 SetResolution 热替换，每轮都重新取当前实例
func (a *Agent) pump(ctx context.Context) {
	encW := a.cfg.Width
	encH := a.cfg.Height
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		capture, w, h := a.current()
		raw, err := capture.GetFrame(grabTimeout)
		if err != nil {
			slog.Warn("capture stalled", "err", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}

		data := raw.Data
		if w != encW || h != encH {
			frame, err := media.NewFrame(a.id, w, h, raw.Data, raw.Timestamp)
			if err != nil {
				slog.Error("bad frame from capture", "err", err)
				continue
			}
			data = frame.Resize(encW, encH).Data
		}
		if err := a.encoder.WriteFrame(data); err != nil {
			slog.Error("failed to feed encoder", "err", err)
			time.Sleep(100 * time.Millisecond)
		}
	}
}

func (a *Agent) current() (*ffstream.Capture, int, int) {
	a.m.Lock()
	defer a.m.Unlock()
	return a.capture, a.width, a.height
}

// Grab 取当前分辨率的一帧，断网值守时做动检输入
func (a *Agent) Grab(ctx context.Context) (*media.Frame, error) {
	capture, w, h := a.current()
	raw, err := capture.GetFrame(grabTimeout)
	if err != nil {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	return media.NewFrame(a.id, w, h, raw.Data, raw.Timestamp)
}

// IVF 编码后的 VP8/IVF 码流
func (a *Agent) IVF() io.Reader { return a.encoder.Output() }

// Resolution 当前采集分辨率
func (a *Agent) Resolution() (int, int) {
	a.m.Lock()
	defer a.m.Unlock()
	return a.width, a.height
}

// Alive 采集进程是否在产帧
func (a *Agent) Alive() bool {
	capture, _, _ := a.current()
	st := capture.GetStats()
	return st.IsRunning && time.Since(st.LastFrame) < 10*time.Second
}

// SetResolution 热替换采集器，编码器不动
func (a *Agent) SetResolution(width, height int) error {
	capture, err := ffstream.NewCapture(ffstream.CaptureConfig{
		Input:  a.cfg.Input,
		Width:  width,
		Height: height,
		FPS:    a.cfg.FPS,
		Name:   a.id,
	})
	if err != nil {
		return err
	}
	if err := capture.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}

	a.m.Lock()
	old := a.capture
	a.capture = capture
	a.width = width
	a.height = height
	a.m.Unlock()

	if err := old.Stop(); err != nil {
		slog.Warn("failed to stop old capture", "err", err)
	}
	slog.Info("capture resolution changed", "width", width, "height", height)
	return nil
}

// Stop 停止采集与编码
func (a *Agent) Stop() {
	capture, _, _ := a.current()
	if err := capture.Stop(); err != nil {
		slog.Warn("failed to stop capture", "err", err)
	}
	if err := a.encoder.Stop(); err != nil {
		slog.Warn("failed to stop encoder", "err", err)
	}
}
