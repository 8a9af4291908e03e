package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gowvp/sentinel/internal/core/sentinel"
	"github.com/gowvp/sentinel/internal/media"
)

type fakeSession struct {
	m        sync.Mutex
	state    string
	failures int // 前 N 次 Connect 失败
	connects int
}

func (s *fakeSession) State() string {
	s.m.Lock()
	defer s.m.Unlock()
	return s.state
}

func (s *fakeSession) Connect(context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()
	s.connects++
	if s.connects <= s.failures {
		return errors.New("server unreachable")
	}
	s.state = "connected"
	return nil
}

func (s *fakeSession) Close() error { return nil }

func (s *fakeSession) connectCount() int {
	s.m.Lock()
	defer s.m.Unlock()
	return s.connects
}

type fakeGrabber struct {
	m     sync.Mutex
	grabs int
	value byte
}

func (g *fakeGrabber) Grab(context.Context) (*media.Frame, error) {
	g.m.Lock()
	g.grabs++
	v := g.value
	g.m.Unlock()
	data := make([]byte, media.FrameSize(320, 240))
	for i := range data {
		data[i] = v
	}
	return media.NewFrame("cam1", 320, 240, data, time.Now())
}

func (g *fakeGrabber) grabCount() int {
	g.m.Lock()
	defer g.m.Unlock()
	return g.grabs
}

func newTestController(s *fakeSession, g *fakeGrabber, journalPath string) *Controller {
	return NewController(s, g, sentinel.NewMotionDetector(), sentinel.NewJournal(journalPath),
		WithBackoff(time.Millisecond),
		WithPollInterval(time.Millisecond),
	)
}

func TestEachFailedAttemptRunsOneSilentWatch(t *testing.T) {
	s := &fakeSession{state: "new", failures: 3}
	g := &fakeGrabber{}
	c := newTestController(s, g, filepath.Join(t.TempDir(), "pending.txt"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for s.connectCount() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	// 前三次失败各做一次动检，第四次成功后不再取帧
	if got := g.grabCount(); got != 3 {
		t.Fatalf("expected 3 silent watch grabs, got %d", got)
	}
	if s.State() != "connected" {
		t.Fatalf("session should end connected, got %s", s.State())
	}
}

func TestSilentWatchJournalsMotion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pending.txt")
	s := &fakeSession{state: "failed", failures: 1 << 30}
	g := &fakeGrabber{}
	c := newTestController(s, g, path)

	ctx := context.Background()

	// 第一帧建立背景
	c.iterate(ctx)
	// 场景突变，动检应命中并落盘
	g.m.Lock()
	g.value = 255
	g.m.Unlock()
	c.iterate(ctx)

	j := sentinel.NewJournal(path)
	lines, err := j.Pending()
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected 1 journaled event, got %d: %v", len(lines), lines)
	}
}

func TestDisconnectedStateTriggersReconnect(t *testing.T) {
	s := &fakeSession{state: "disconnected", failures: 1}
	g := &fakeGrabber{}
	c := newTestController(s, g, filepath.Join(t.TempDir(), "pending.txt"))

	// 链路中断第一轮就要发起信令，失败则做静默值守，不能等 ICE 超时翻到 failed
	c.iterate(context.Background())
	if got := s.connectCount(); got != 1 {
		t.Fatalf("expected 1 connect attempt, got %d", got)
	}
	if got := g.grabCount(); got != 1 {
		t.Fatalf("expected 1 silent watch grab, got %d", got)
	}

	c.iterate(context.Background())
	if s.State() != "connected" {
		t.Fatalf("session should end connected, got %s", s.State())
	}
}

func TestConnectedSessionSkipsSilentWatch(t *testing.T) {
	s := &fakeSession{state: "connected"}
	g := &fakeGrabber{}
	c := newTestController(s, g, filepath.Join(t.TempDir(), "pending.txt"))

	for i := 0; i < 5; i++ {
		c.iterate(context.Background())
	}
	if s.connectCount() != 0 {
		t.Fatal("connected session must not re-signal")
	}
	if g.grabCount() != 0 {
		t.Fatal("connected session must not run motion checks")
	}
}
