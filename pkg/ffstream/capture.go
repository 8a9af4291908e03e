package ffstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

type (
	// CaptureConfig 采集参数，Input 支持本地设备与 rtsp 地址
	CaptureConfig struct {
		Input         string
		Width, Height int
		FPS           int
		Transport     string
		Name          string
	}

	FrameData struct {
		FrameNum  uint64
		Timestamp time.Time
		Data      []byte
	}

	// Capture 驱动 ffmpeg 把摄像头输出解码为固定大小的 BGR24 裸帧
	Capture struct {
		config    CaptureConfig
		frameSize int
		frameCh   chan *FrameData
		errCh     chan error
		ctx       context.Context
		cancel    context.CancelFunc
		m         sync.Mutex
		started   bool
		cmd       *exec.Cmd
		lastFrame time.Time
		wg        sync.WaitGroup
		ffmpegLog *queue.CirQueue[string]

		frameCount, skipCount uint64
	}

	CaptureStats struct {
		Name                  string
		FrameCount, SkipCount uint64
		LastFrame             time.Time
		FrameSize             int
		IsRunning             bool
	}
)

func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid resolution: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid fps: %d", cfg.FPS)
	}
	if cfg.Input == "" {
		return nil, fmt.Errorf("input is required")
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Capture{
		config:    cfg,
		frameSize: cfg.Width * cfg.Height * 3,
		frameCh:   make(chan *FrameData, 10),
		errCh:     make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
		ffmpegLog: queue.NewCirQueue[string](100),
	}, nil
}

func (c *Capture) FrameSize() int { return c.frameSize }

func (c *Capture) buildArgs() []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-threads", "2",
	}
	if strings.HasPrefix(c.config.Input, "rtsp://") {
		args = append(args,
			"-avoid_negative_ts", "make_zero",
			"-fflags", "+genpts+discardcorrupt",
			"-rtsp_transport", c.config.Transport,
			"-timeout", "10000000",
		)
	} else {
		// 本地视频设备
		args = append(args,
			"-f", "v4l2",
			"-framerate", strconv.Itoa(c.config.FPS),
			"-video_size", fmt.Sprintf("%dx%d", c.config.Width, c.config.Height),
		)
	}
	args = append(args, "-i", c.config.Input)
	args = append(args,
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-r", strconv.Itoa(c.config.FPS),
		"-vf", fmt.Sprintf("fps=%d,scale=%d:%d", c.config.FPS, c.config.Width, c.config.Height),
		"pipe:1",
	)
	return args
}

func (c *Capture) Start() error {
	c.m.Lock()
	defer c.m.Unlock()
	if c.started {
		return fmt.Errorf("capture already started")
	}

	c.cmd = exec.CommandContext(c.ctx, "ffmpeg", c.buildArgs()...)
	stdout, err := c.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := c.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := c.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	c.started = true
	c.lastFrame = time.Now()

	c.wg.Go(func() { c.captureLoop(stdout) })
	c.wg.Go(func() { drainStderr(stderr, c.ffmpegLog) })
	return nil
}

// captureLoop 按帧大小从 ffmpeg stdout 读取固定长度的 BGR24 数据
func (c *Capture) captureLoop(stdout io.Reader) {
	defer close(c.frameCh)

	reader := bufio.NewReaderSize(stdout, c.frameSize*4)
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		frameBytes := make([]byte, c.frameSize)
		if _, err := io.ReadFull(reader, frameBytes); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				select {
				case c.errCh <- fmt.Errorf("capture stream ended: %w", err):
				default:
				}
				return
			}
			select {
			case c.errCh <- fmt.Errorf("failed to read frame: %w", err):
			default:
			}
			return
		}

		frameNum := atomic.AddUint64(&c.frameCount, 1)
		now := time.Now()
		c.m.Lock()
		c.lastFrame = now
		c.m.Unlock()

		frame := FrameData{FrameNum: frameNum, Timestamp: now, Data: frameBytes}
		select {
		case c.frameCh <- &frame:
		case <-c.ctx.Done():
			return
		default:
			atomic.AddUint64(&c.skipCount, 1)
		}
	}
}

func (c *Capture) Frames() <-chan *FrameData { return c.frameCh }

func (c *Capture) Error() <-chan error { return c.errCh }

func (c *Capture) Log() []string { return c.ffmpegLog.Range() }

// GetFrame 取一帧，超时返回错误，DDIL 模式下直接抓单帧时使用
func (c *Capture) GetFrame(timeout time.Duration) (*FrameData, error) {
	select {
	case frame, ok := <-c.frameCh:
		if !ok {
			return nil, fmt.Errorf("frame channel closed")
		}
		return frame, nil
	case err := <-c.errCh:
		return nil, err
	case <-c.ctx.Done():
		return nil, c.ctx.Err()
	case <-time.After(timeout):
		return nil, fmt.Errorf("timeout")
	}
}

func (c *Capture) Stop() error {
	c.m.Lock()
	if !c.started {
		c.m.Unlock()
		return nil
	}
	c.m.Unlock()

	if cancel := c.cancel; cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return waitOrKill(c.cmd, 5*time.Second)
}

func (c *Capture) GetStats() CaptureStats {
	c.m.Lock()
	defer c.m.Unlock()
	return CaptureStats{
		Name:       c.config.Name,
		FrameCount: atomic.LoadUint64(&c.frameCount),
		SkipCount:  atomic.LoadUint64(&c.skipCount),
		LastFrame:  c.lastFrame,
		FrameSize:  c.frameSize,
		IsRunning:  c.started,
	}
}
