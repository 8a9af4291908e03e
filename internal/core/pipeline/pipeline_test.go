package pipeline

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/gowvp/sentinel/internal/core/event"
	"github.com/gowvp/sentinel/internal/media"
)

type fakeRecorder struct {
	m       sync.Mutex
	added   []*event.AddEventInput
	touched []*event.TouchEventInput
}

func (f *fakeRecorder) AddEvent(_ context.Context, in *event.AddEventInput) (*event.Event, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.added = append(f.added, in)
	return &event.Event{ID: int64(len(f.added))}, nil
}

func (f *fakeRecorder) TouchEvent(_ context.Context, in *event.TouchEventInput) (*event.Event, error) {
	f.m.Lock()
	defer f.m.Unlock()
	f.touched = append(f.touched, in)
	return &event.Event{}, nil
}

type fakeNotifier struct {
	m     sync.Mutex
	fired []string
}

func (f *fakeNotifier) MaybeFire(label string, _ float64, _ string, _ *media.Frame) {
	f.m.Lock()
	f.fired = append(f.fired, label)
	f.m.Unlock()
}

// gateDetector 阻塞直到放行，用于验证任务在途约束
type gateDetector struct {
	m     sync.Mutex
	calls int
	gate  chan []Detection
}

func (d *gateDetector) Detect(ctx context.Context, _ *media.Frame) ([]Detection, error) {
	d.m.Lock()
	d.calls++
	d.m.Unlock()
	select {
	case dets := <-d.gate:
		return dets, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *gateDetector) callCount() int {
	d.m.Lock()
	defer d.m.Unlock()
	return d.calls
}

func pipelineFrame(t *testing.T) *media.Frame {
	t.Helper()
	data := make([]byte, media.FrameSize(64, 48))
	f, err := media.NewFrame("cam1", 64, 48, data, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func newTestLifecycle(rec *fakeRecorder, n Notifier) *Lifecycle {
	return NewLifecycle("cam1", rec, n, 10*time.Second, "")
}

func TestProcessorSingleJobInFlight(t *testing.T) {
	det := &gateDetector{gate: make(chan []Detection)}
	p := NewProcessor("cam1", det, newTestLifecycle(&fakeRecorder{}, nil), 5)

	ctx := context.Background()
	// 20 帧内任务一直未完成，只应提交一次
	for i := 0; i < 20; i++ {
		p.Process(ctx, pipelineFrame(t))
	}

	deadline := time.Now().Add(time.Second)
	for det.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := det.callCount(); got != 1 {
		t.Fatalf("expected exactly 1 inference in flight, got %d", got)
	}
}

func TestProcessorCachesBoxesAfterCompletion(t *testing.T) {
	det := &gateDetector{gate: make(chan []Detection, 1)}
	rec := &fakeRecorder{}
	p := NewProcessor("cam1", det, newTestLifecycle(rec, nil), 5)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		p.Process(ctx, pipelineFrame(t))
	}

	// 放行推理结果
	d, err := NewDetection("person", 0.9, image.Rect(10, 10, 30, 30))
	if err != nil {
		t.Fatal(err)
	}
	det.gate <- []Detection{d}

	// 轮询到任务完成为止
	var out *media.Frame
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		out = p.Process(ctx, pipelineFrame(t))
		if len(p.cached) > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if len(p.cached) != 1 {
		t.Fatal("completed inference should populate cached boxes")
	}

	// 标注帧是副本且画上了框
	in := pipelineFrame(t)
	out = p.Process(ctx, in)
	if out == in {
		t.Fatal("annotated frame should be a copy")
	}
	i := (10*out.Width + 10) * 3
	if out.Data[i+1] != 255 {
		t.Fatal("expected green box pixel at (10,10)")
	}
	if in.Data[i+1] != 0 {
		t.Fatal("source frame must stay unmodified")
	}

	rec.m.Lock()
	defer rec.m.Unlock()
	if len(rec.added) != 1 {
		t.Fatalf("new track should persist exactly one event, got %d", len(rec.added))
	}
}

type errDetector struct{}

func (errDetector) Detect(context.Context, *media.Frame) ([]Detection, error) {
	return nil, errors.New("detector offline")
}

func TestProcessorInferenceErrorClearsCache(t *testing.T) {
	p := NewProcessor("cam1", errDetector{}, newTestLifecycle(&fakeRecorder{}, nil), 1)
	p.cached = []TrackedDetection{{ID: "1"}}

	ctx := context.Background()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		p.Process(ctx, pipelineFrame(t))
		if len(p.cached) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("failed inference should clear cached boxes")
}

func TestLifecycleNewContinuingStale(t *testing.T) {
	rec := &fakeRecorder{}
	notif := &fakeNotifier{}
	l := newTestLifecycle(rec, notif)

	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	ctx := context.Background()
	td := TrackedDetection{ID: "7", Detection: det(t, "person", 0.6, 0, 0, 10, 10)}

	// 新轨迹：落库 + 告警
	l.Observe(ctx, []TrackedDetection{td}, nil)
	if len(rec.added) != 1 || len(rec.touched) != 0 {
		t.Fatalf("new track: added=%d touched=%d", len(rec.added), len(rec.touched))
	}
	if rec.added[0].TrackID != "7" || rec.added[0].MaxConf != 0.6 {
		t.Fatalf("unexpected add input: %+v", rec.added[0])
	}
	if len(notif.fired) != 1 || notif.fired[0] != "person" {
		t.Fatalf("new track should fire alert, got %v", notif.fired)
	}

	// 持续轨迹：刷新而不是新增
	now = base.Add(2 * time.Second)
	td.Conf = 0.9
	l.Observe(ctx, []TrackedDetection{td}, nil)
	if len(rec.added) != 1 || len(rec.touched) != 1 {
		t.Fatalf("continuing track: added=%d touched=%d", len(rec.added), len(rec.touched))
	}
	if rec.touched[0].Conf != 0.9 {
		t.Fatalf("touch should carry latest conf: %+v", rec.touched[0])
	}
	if l.ActiveTracks() != 1 {
		t.Fatalf("expected 1 active track, got %d", l.ActiveTracks())
	}

	// 过期：超过窗口后从内存清出，再次出现视为新轨迹
	now = base.Add(20 * time.Second)
	l.Observe(ctx, nil, nil)
	if l.ActiveTracks() != 0 {
		t.Fatalf("stale track should be evicted, got %d", l.ActiveTracks())
	}

	l.Observe(ctx, []TrackedDetection{td}, nil)
	if len(rec.added) != 2 {
		t.Fatalf("reappearing track should persist a fresh event, got %d", len(rec.added))
	}
}
