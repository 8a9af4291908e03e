package media

import (
	"bytes"
	"testing"
	"time"
)

func TestNewFrameValidation(t *testing.T) {
	if _, err := NewFrame("cam1", 0, 240, nil, time.Now()); err == nil {
		t.Fatal("expected error for zero width")
	}
	if _, err := NewFrame("cam1", 4, 4, make([]byte, 10), time.Now()); err == nil {
		t.Fatal("expected error for size mismatch")
	}
	f, err := NewFrame("cam1", 4, 4, make([]byte, 48), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if f.CameraID != "cam1" {
		t.Fatalf("unexpected camera id %s", f.CameraID)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	data := make([]byte, FrameSize(2, 2))
	f, _ := NewFrame("cam1", 2, 2, data, time.Now())
	c := f.Clone()
	c.Data[0] = 0xff
	if f.Data[0] == 0xff {
		t.Fatal("clone shares backing array with source")
	}
}

func TestResize(t *testing.T) {
	data := bytes.Repeat([]byte{10, 20, 30}, 8*8)
	f, _ := NewFrame("cam1", 8, 8, data, time.Now())

	same := f.Resize(8, 8)
	if same != f {
		t.Fatal("resize to same dimensions should return the frame unchanged")
	}

	small := f.Resize(4, 2)
	if small.Width != 4 || small.Height != 2 {
		t.Fatalf("unexpected dimensions %dx%d", small.Width, small.Height)
	}
	if len(small.Data) != FrameSize(4, 2) {
		t.Fatalf("unexpected data length %d", len(small.Data))
	}
	// 纯色图缩放后仍为同一颜色
	if small.Data[0] != 10 || small.Data[1] != 20 || small.Data[2] != 30 {
		t.Fatalf("unexpected pixel %v", small.Data[:3])
	}
}

func TestRGBARoundTrip(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	f, _ := NewFrame("cam1", 2, 2, data, time.Now())
	back := FromRGBA("cam1", f.ToRGBA(), f.Timestamp)
	if !bytes.Equal(back.Data, data) {
		t.Fatalf("round trip mismatch: %v != %v", back.Data, data)
	}
}

func TestEncodeJPEG(t *testing.T) {
	f, _ := NewFrame("cam1", 16, 16, make([]byte, FrameSize(16, 16)), time.Now())
	b, err := f.EncodeJPEG(80)
	if err != nil {
		t.Fatal(err)
	}
	if len(b) == 0 {
		t.Fatal("empty jpeg output")
	}
}
