package record

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gowvp/sentinel/internal/media"
	"github.com/ixugo/goddd/pkg/queue"
)

const stopTimeout = 2 * time.Second

type Config struct {
	CameraID     string
	StorageDir   string
	Width        int
	Height       int
	FPS          int
	SegmentTime  int
	PlaylistSize int
	Binary       string // 测试时可替换的编码器命令
}

// Supervisor 单摄像头的 HLS 录像进程监管
// 裸帧经 stdin 喂给编码器，管道断裂且非主动停止时原地重启
type Supervisor struct {
	m         sync.Mutex
	cfg       Config
	frameSize int
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	recording bool
	stopping  bool
	restarts  int
	wg        sync.WaitGroup
	ffmpegLog *queue.CirQueue[string]
}

func NewSupervisor(cfg Config) *Supervisor {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.FPS <= 0 {
		cfg.FPS = 15
	}
	if cfg.SegmentTime <= 0 {
		cfg.SegmentTime = 4
	}
	if cfg.PlaylistSize <= 0 {
		cfg.PlaylistSize = 20
	}
	return &Supervisor{
		cfg:       cfg,
		frameSize: media.FrameSize(cfg.Width, cfg.Height),
		ffmpegLog: queue.NewCirQueue[string](100),
	}
}

// OutputDir 该摄像头的切片目录
func (s *Supervisor) OutputDir() string {
	return filepath.Join(s.cfg.StorageDir, s.cfg.CameraID)
}

// PlaylistPath 滚动播放列表路径
func (s *Supervisor) PlaylistPath() string {
	return filepath.Join(s.OutputDir(), "stream.m3u8")
}

func (s *Supervisor) buildArgs() []string {
	gop := s.cfg.FPS * 2
	return []string{
		"-y",
		"-f", "rawvideo",
		"-vcodec", "rawvideo",
		"-s", fmt.Sprintf("%dx%d", s.cfg.Width, s.cfg.Height),
		"-pix_fmt", "bgr24",
		"-r", strconv.Itoa(s.cfg.FPS),
		"-i", "-",

		"-c:v", "libx264",
		// 浏览器兼容：强制 yuv420p + main profile
		"-pix_fmt", "yuv420p",
		"-profile:v", "main",
		"-level", "3.0",
		"-preset", "veryfast",
		"-tune", "zerolatency",
		"-g", strconv.Itoa(gop),
		"-sc_threshold", "0",

		"-f", "hls",
		"-hls_time", strconv.Itoa(s.cfg.SegmentTime),
		"-hls_list_size", strconv.Itoa(s.cfg.PlaylistSize),
		"-hls_flags", "delete_segments",
		"-hls_segment_type", "fmp4",
		"-start_number", "0",
		s.PlaylistPath(),
	}
}

// Start 清空旧切片并拉起编码进程
func (s *Supervisor) Start() error {
	s.m.Lock()
	defer s.m.Unlock()
	if s.recording {
		return nil
	}
	if err := s.cleanupStaleFiles(); err != nil {
		return err
	}
	return s.startLocked()
}

// cleanupStaleFiles 每次冷启动从空目录开始
func (s *Supervisor) cleanupStaleFiles() error {
	dir := s.OutputDir()
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to clean recording dir: %w", err)
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Supervisor) startLocked() error {
	cmd := exec.Command(s.cfg.Binary, s.buildArgs()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	s.cmd = cmd
	s.stdin = stdin
	s.recording = true

	s.wg.Go(func() { s.monitorStderr(stderr) })

	slog.Info("hls recording started", "camera_id", s.cfg.CameraID, "dir", s.OutputDir())
	return nil
}

// monitorStderr 持续排空编码器日志，只保留告警和错误
func (s *Supervisor) monitorStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.Contains(line, "Error") || strings.Contains(line, "Warning") || strings.Contains(line, "fail") {
			slog.Warn("encoder output", "camera_id", s.cfg.CameraID, "line", line)
			s.ffmpegLog.Push(line)
		}
	}
}

// Push 写入一帧，分辨率不符时先缩放
// 管道断裂且非主动停止时重启编码进程，当前帧丢弃
func (s *Supervisor) Push(frame *media.Frame) error {
	s.m.Lock()
	defer s.m.Unlock()

	if !s.recording || s.stdin == nil {
		return nil
	}

	out := frame
	if frame.Width != s.cfg.Width || frame.Height != s.cfg.Height {
		out = frame.Resize(s.cfg.Width, s.cfg.Height)
	}

	if _, err := s.stdin.Write(out.Data); err != nil {
		if s.stopping {
			return nil
		}
		if isBrokenPipe(err) {
			slog.Error("encoder pipe broken, restarting", "camera_id", s.cfg.CameraID, "err", err)
			s.stopLocked()
			s.restarts++
			return s.startLocked()
		}
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}

// Stop 主动停止：terminate，等 2 秒，不退出则 kill
func (s *Supervisor) Stop() error {
	s.m.Lock()
	s.stopping = true
	err := s.stopLocked()
	s.m.Unlock()
	s.wg.Wait()
	return err
}

func (s *Supervisor) stopLocked() error {
	if !s.recording {
		return nil
	}
	s.recording = false
	if s.stdin != nil {
		_ = s.stdin.Close()
		s.stdin = nil
	}
	cmd := s.cmd
	s.cmd = nil
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case <-done:
		return nil
	case <-time.After(stopTimeout):
		_ = cmd.Process.Kill()
		<-done
		return nil
	}
}

// Restarts 管道断裂触发的重启次数
func (s *Supervisor) Restarts() int {
	s.m.Lock()
	defer s.m.Unlock()
	return s.restarts
}

// Recording 是否在录
func (s *Supervisor) Recording() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.recording
}

// Log 最近的编码器告警日志
func (s *Supervisor) Log() []string { return s.ffmpegLog.Range() }
