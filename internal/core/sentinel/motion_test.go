package sentinel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gowvp/sentinel/internal/media"
)

func solidFrame(t *testing.T, value byte) *media.Frame {
	t.Helper()
	data := make([]byte, media.FrameSize(detectWidth, detectHeight))
	for i := range data {
		data[i] = value
	}
	f, err := media.NewFrame("cam1", detectWidth, detectHeight, data, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestFirstFrameInitializesBackground(t *testing.T) {
	d := NewMotionDetector()
	ratio, moved, err := d.Detect(solidFrame(t, 100))
	if err != nil {
		t.Fatal(err)
	}
	if moved || ratio != 0 {
		t.Fatalf("first frame should never report motion, got ratio=%f moved=%v", ratio, moved)
	}
}

func TestStaticSceneIsQuiet(t *testing.T) {
	d := NewMotionDetector()
	if _, _, err := d.Detect(solidFrame(t, 100)); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		ratio, moved, err := d.Detect(solidFrame(t, 100))
		if err != nil {
			t.Fatal(err)
		}
		if moved {
			t.Fatalf("static scene reported motion at frame %d, ratio=%f", i, ratio)
		}
	}
}

func TestLargeChangeTriggersMotion(t *testing.T) {
	d := NewMotionDetector()
	if _, _, err := d.Detect(solidFrame(t, 0)); err != nil {
		t.Fatal(err)
	}
	ratio, moved, err := d.Detect(solidFrame(t, 255))
	if err != nil {
		t.Fatal(err)
	}
	if !moved {
		t.Fatalf("full-frame change should trigger, ratio=%f", ratio)
	}
	if ratio < 0.9 {
		t.Fatalf("expected near-total foreground, got %f", ratio)
	}
}

func TestSmallChangeStaysBelowThreshold(t *testing.T) {
	d := NewMotionDetector()
	base := solidFrame(t, 0)
	if _, _, err := d.Detect(base); err != nil {
		t.Fatal(err)
	}

	// 只改动约 1% 的像素
	next := solidFrame(t, 0)
	changed := detectWidth * detectHeight / 100
	for i := 0; i < changed*3; i++ {
		next.Data[i] = 255
	}
	ratio, moved, err := d.Detect(next)
	if err != nil {
		t.Fatal(err)
	}
	if moved {
		t.Fatalf("1%% change should stay quiet, ratio=%f", ratio)
	}
}

func TestResetForgetsBackground(t *testing.T) {
	d := NewMotionDetector()
	if _, _, err := d.Detect(solidFrame(t, 0)); err != nil {
		t.Fatal(err)
	}
	d.Reset()
	_, moved, err := d.Detect(solidFrame(t, 255))
	if err != nil {
		t.Fatal(err)
	}
	if moved {
		t.Fatal("first frame after reset should only rebuild background")
	}
}

func TestJournalAppendAndPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.txt")
	j := NewJournal(path)
	j.now = func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) }

	if err := j.Append(0.0812); err != nil {
		t.Fatal(err)
	}
	if err := j.Append(0.1200); err != nil {
		t.Fatal(err)
	}

	lines, err := j.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 pending lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "CONFIRMED MOTION (ratio=0.0812)") {
		t.Fatalf("unexpected journal line: %s", lines[0])
	}
	if !strings.HasPrefix(lines[0], "2026-08-29T10:00:00Z") {
		t.Fatalf("expected RFC3339 timestamp prefix: %s", lines[0])
	}
}

func TestJournalPendingMissingFile(t *testing.T) {
	j := NewJournal(filepath.Join(t.TempDir(), "absent.txt"))
	lines, err := j.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if lines != nil {
		t.Fatalf("expected nil for missing journal, got %v", lines)
	}
}

func TestJournalTruncate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.txt")
	j := NewJournal(path)
	if err := j.Append(0.5); err != nil {
		t.Fatal(err)
	}
	if err := j.Truncate(); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Fatalf("journal should be empty after truncate, size=%d", info.Size())
	}
}
