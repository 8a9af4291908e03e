package record

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gowvp/sentinel/internal/media"
)

func rawFrame(t *testing.T, w, h int) *media.Frame {
	t.Helper()
	f, err := media.NewFrame("cam1", w, h, make([]byte, media.FrameSize(w, h)), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestPushRestartsOnBrokenPipe(t *testing.T) {
	// 用立即退出的命令顶替编码器，写入必然踩到断裂的管道
	s := NewSupervisor(Config{
		CameraID:   "cam1",
		StorageDir: t.TempDir(),
		Width:      8,
		Height:     8,
		Binary:     "false",
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	frame := rawFrame(t, 8, 8)
	deadline := time.Now().Add(3 * time.Second)
	for s.Restarts() == 0 && time.Now().Before(deadline) {
		_ = s.Push(frame)
		time.Sleep(10 * time.Millisecond)
	}
	if s.Restarts() == 0 {
		t.Fatal("broken pipe should trigger a restart")
	}
	if !s.Recording() {
		t.Fatal("supervisor should keep recording after restart")
	}
}

func TestStopPreventsRestart(t *testing.T) {
	s := NewSupervisor(Config{
		CameraID:   "cam1",
		StorageDir: t.TempDir(),
		Width:      8,
		Height:     8,
		Binary:     "false",
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	if err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if s.Recording() {
		t.Fatal("supervisor should not be recording after Stop")
	}
	// 停止后写帧是空操作
	if err := s.Push(rawFrame(t, 8, 8)); err != nil {
		t.Fatal(err)
	}
	if s.Restarts() != 0 {
		t.Fatal("push after stop must not restart")
	}
}

func TestStartCleansStaleSegments(t *testing.T) {
	dir := t.TempDir()
	s := NewSupervisor(Config{
		CameraID:   "cam1",
		StorageDir: dir,
		Width:      8,
		Height:     8,
		Binary:     "false",
	})

	stale := filepath.Join(s.OutputDir(), "old_segment.m4s")
	if err := os.MkdirAll(s.OutputDir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("junk"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("stale segment should be removed on start")
	}
}

func TestPushResizesMismatchedFrame(t *testing.T) {
	s := NewSupervisor(Config{
		CameraID:   "cam1",
		StorageDir: t.TempDir(),
		Width:      8,
		Height:     8,
		Binary:     "cat",
	})
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	// 分辨率不符的帧先缩放再写，不应报错
	if err := s.Push(rawFrame(t, 16, 16)); err != nil {
		t.Fatal(err)
	}
}

func TestReadPlaylist(t *testing.T) {
	content := `#EXTM3U
#EXT-X-VERSION:7
#EXT-X-TARGETDURATION:4
#EXT-X-MEDIA-SEQUENCE:12
#EXTINF:4.000000,
stream12.m4s
#EXTINF:4.000000,
stream13.m4s
#EXTINF:2.500000,
stream14.m4s
`
	path := filepath.Join(t.TempDir(), "stream.m3u8")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := ReadPlaylist(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.TargetDuration != 4 {
		t.Fatalf("expected target duration 4, got %f", info.TargetDuration)
	}
	if info.SequenceNo != 12 {
		t.Fatalf("expected sequence 12, got %d", info.SequenceNo)
	}
	if len(info.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(info.Segments))
	}
	if info.Segments[2].URI != "stream14.m4s" || info.Segments[2].Duration != 2.5 {
		t.Fatalf("unexpected last segment: %+v", info.Segments[2])
	}

	if _, err := ReadPlaylist(filepath.Join(t.TempDir(), "missing.m3u8")); err == nil {
		t.Fatal("missing playlist should error")
	}
}
