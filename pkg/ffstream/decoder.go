package ffstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ixugo/goddd/pkg/queue"
)

type (
	// DecoderConfig 码流解码参数，输出缩放到固定分辨率以便按帧切分
	DecoderConfig struct {
		Width, Height int
	}

	// Decoder 从 stdin 读取 IVF 码流，解码为固定大小的 BGR24 裸帧
	// 服务端把媒体轨道上收到的 RTP 负载组包后喂给它
	Decoder struct {
		config     DecoderConfig
		frameSize  int
		frameCh    chan *FrameData
		errCh      chan error
		ctx        context.Context
		cancel     context.CancelFunc
		m          sync.Mutex
		started    bool
		cmd        *exec.Cmd
		stdin      io.WriteCloser
		wg         sync.WaitGroup
		ffmpegLog  *queue.CirQueue[string]
		frameCount uint64
	}
)

func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid resolution: %dx%d", cfg.Width, cfg.Height)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Decoder{
		config:    cfg,
		frameSize: cfg.Width * cfg.Height * 3,
		frameCh:   make(chan *FrameData, 10),
		errCh:     make(chan error, 1),
		ctx:       ctx,
		cancel:    cancel,
		ffmpegLog: queue.NewCirQueue[string](100),
	}, nil
}

func (d *Decoder) buildArgs() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-f", "ivf",
		"-i", "-",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-vf", fmt.Sprintf("scale=%d:%d", d.config.Width, d.config.Height),
		"pipe:1",
	}
}

func (d *Decoder) Start() error {
	d.m.Lock()
	defer d.m.Unlock()
	if d.started {
		return fmt.Errorf("decoder already started")
	}

	d.cmd = exec.CommandContext(d.ctx, "ffmpeg", d.buildArgs()...)
	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}
	stderr, err := d.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	d.stdin = stdin
	d.started = true

	d.wg.Go(func() { d.decodeLoop(stdout) })
	d.wg.Go(func() { drainStderr(stderr, d.ffmpegLog) })
	return nil
}

// Input 码流写入端，实现 io.Writer 以便直接挂到 IVF 封装器后面
func (d *Decoder) Input() io.Writer { return d.stdin }

func (d *Decoder) decodeLoop(stdout io.Reader) {
	defer close(d.frameCh)

	reader := bufio.NewReaderSize(stdout, d.frameSize*4)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		frameBytes := make([]byte, d.frameSize)
		if _, err := io.ReadFull(reader, frameBytes); err != nil {
			select {
			case d.errCh <- fmt.Errorf("decoder stream ended: %w", err):
			default:
			}
			return
		}

		frame := FrameData{
			FrameNum:  atomic.AddUint64(&d.frameCount, 1),
			Timestamp: time.Now(),
			Data:      frameBytes,
		}
		select {
		case d.frameCh <- &frame:
		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Decoder) Frames() <-chan *FrameData { return d.frameCh }

func (d *Decoder) Error() <-chan error { return d.errCh }

func (d *Decoder) FrameSize() int { return d.frameSize }

func (d *Decoder) Log() []string { return d.ffmpegLog.Range() }

func (d *Decoder) Stop() error {
	d.m.Lock()
	if !d.started {
		d.m.Unlock()
		return nil
	}
	if d.stdin != nil {
		_ = d.stdin.Close()
	}
	d.m.Unlock()

	d.cancel()
	d.wg.Wait()
	return waitOrKill(d.cmd, 5*time.Second)
}
