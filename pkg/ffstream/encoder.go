package ffstream

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

type (
	// EncoderConfig 裸帧到 VP8/IVF 的编码参数
	// 输出走 stdout，由上层按 IVF 帧切分后写入媒体轨道
	EncoderConfig struct {
		Width, Height int
		FPS           int
		Bitrate       string
	}

	// Encoder 把 BGR24 裸帧实时编码为 IVF 容器内的 VP8 码流
	Encoder struct {
		config    EncoderConfig
		frameSize int
		m         sync.Mutex
		started   bool
		cmd       *exec.Cmd
		stdin     io.WriteCloser
		stdout    io.ReadCloser
		ctx       context.Context
		cancel    context.CancelFunc
		wg        sync.WaitGroup
		ffmpegLog *queue.CirQueue[string]
	}
)

func NewEncoder(cfg EncoderConfig) (*Encoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid resolution: %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid fps: %d", cfg.FPS)
	}
	if cfg.Bitrate == "" {
		cfg.Bitrate = "1M"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Encoder{
		config:    cfg,
		frameSize: cfg.Width * cfg.Height * 3,
		ctx:       ctx,
		cancel:    cancel,
		ffmpegLog: queue.NewCirQueue[string](100),
	}, nil
}

func (e *Encoder) buildArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", e.config.Width, e.config.Height),
		"-r", strconv.Itoa(e.config.FPS),
		"-i", "-",
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-cpu-used", "5",
		"-b:v", e.config.Bitrate,
		"-f", "ivf",
		"pipe:1",
	}
}

func (e *Encoder) Start() error {
	e.m.Lock()
	defer e.m.Unlock()
	if e.started {
		return fmt.Errorf("encoder already started")
	}

	e.cmd = exec.CommandContext(e.ctx, "ffmpeg", e.buildArgs()...)
	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := e.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := e.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := e.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	e.stdin = stdin
	e.stdout = stdout
	e.started = true

	e.wg.Go(func() { drainStderr(stderr, e.ffmpegLog) })
	return nil
}

// WriteFrame 写入一帧裸数据，长度必须等于 FrameSize
func (e *Encoder) WriteFrame(data []byte) error {
	if len(data) != e.frameSize {
		return fmt.Errorf("frame size mismatch: got %d want %d", len(data), e.frameSize)
	}
	e.m.Lock()
	stdin := e.stdin
	e.m.Unlock()
	if stdin == nil {
		return fmt.Errorf("encoder not started")
	}
	if _, err := stdin.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Output IVF 码流读取端
func (e *Encoder) Output() io.Reader { return e.stdout }

func (e *Encoder) FrameSize() int { return e.frameSize }

func (e *Encoder) Log() []string { return e.ffmpegLog.Range() }

func (e *Encoder) Stop() error {
	e.m.Lock()
	if !e.started {
		e.m.Unlock()
		return nil
	}
	if e.stdin != nil {
		_ = e.stdin.Close()
	}
	e.m.Unlock()

	e.cancel()
	e.wg.Wait()
	return waitOrKill(e.cmd, 5*time.Second)
}
