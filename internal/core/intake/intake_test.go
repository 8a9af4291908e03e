package intake

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gowvp/sentinel/internal/media"
)

type fakeSource struct {
	ch  chan *media.Frame
	err error
}

func (s *fakeSource) ReadFrame(ctx context.Context) (*media.Frame, error) {
	select {
	case f, ok := <-s.ch:
		if !ok {
			if s.err != nil {
				return nil, s.err
			}
			return nil, fmt.Errorf("source closed")
		}
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testFrame(t *testing.T, cameraID string, seq byte) *media.Frame {
	t.Helper()
	data := make([]byte, media.FrameSize(2, 2))
	data[0] = seq
	f, err := media.NewFrame(cameraID, 2, 2, data, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestDrainReturnsFreshestFrame(t *testing.T) {
	src := &fakeSource{ch: make(chan *media.Frame, 10)}
	for i := byte(1); i <= 5; i++ {
		src.ch <- testFrame(t, "cam1", i)
	}

	in := New("cam1", src, NewRegister())
	frame, err := in.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if frame.Data[0] != 5 {
		t.Fatalf("expected freshest frame 5, got %d", frame.Data[0])
	}
	// 中间帧全部被丢弃，桶应为空
	select {
	case f := <-src.ch:
		t.Fatalf("unexpected leftover frame %d", f.Data[0])
	default:
	}
}

func TestDrainBlocksUntilFrameAvailable(t *testing.T) {
	src := &fakeSource{ch: make(chan *media.Frame, 1)}
	in := New("cam1", src, NewRegister())

	go func() {
		time.Sleep(20 * time.Millisecond)
		src.ch <- testFrame(t, "cam1", 9)
	}()

	frame, err := in.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if frame.Data[0] != 9 {
		t.Fatalf("expected frame 9, got %d", frame.Data[0])
	}
}

func TestDrainOnePerCall(t *testing.T) {
	src := &fakeSource{ch: make(chan *media.Frame, 10)}
	in := New("cam1", src, NewRegister(), WithGraceWindow(time.Millisecond))

	src.ch <- testFrame(t, "cam1", 1)
	first, err := in.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	src.ch <- testFrame(t, "cam1", 2)
	second, err := in.Drain(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Data[0] != 1 || second.Data[0] != 2 {
		t.Fatalf("expected frames 1 then 2, got %d then %d", first.Data[0], second.Data[0])
	}
}

func TestRunTerminatesOnSourceError(t *testing.T) {
	src := &fakeSource{ch: make(chan *media.Frame, 1), err: errors.New("track ended")}
	reg := NewRegister()

	src.ch <- testFrame(t, "cam1", 1)
	close(src.ch)

	exited := make(chan error, 1)
	in := New("cam1", src, reg,
		WithOnExit(func(err error) { exited <- err }),
	)

	done := make(chan struct{})
	go func() {
		in.Run(context.Background())
		close(done)
	}()

	select {
	case err := <-exited:
		if err == nil {
			t.Fatal("expected exit error")
		}
	case <-time.After(time.Second):
		t.Fatal("intake did not exit on source error")
	}
	<-done

	if reg.Latest("cam1") != nil {
		t.Fatal("register slot should be dropped on exit")
	}
}

func TestRegisterOverwriteAndCopyOut(t *testing.T) {
	reg := NewRegister()
	if reg.Latest("cam1") != nil {
		t.Fatal("empty register should return nil")
	}

	reg.Set(testFrame(t, "cam1", 1))
	reg.Set(testFrame(t, "cam1", 2))

	got := reg.Latest("cam1")
	if got.Data[0] != 2 {
		t.Fatalf("expected overwrite to keep frame 2, got %d", got.Data[0])
	}

	// 读取端持有副本，修改不应影响寄存器
	got.Data[0] = 99
	if reg.Latest("cam1").Data[0] != 2 {
		t.Fatal("register should hand out copies")
	}
}
