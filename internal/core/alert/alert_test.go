package alert

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestThrottlerCooldown(t *testing.T) {
	base := time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC)
	now := base
	th := NewThrottler(60 * time.Second)
	th.now = func() time.Time { return now }

	if !th.Allow("person") {
		t.Fatal("first alert should pass")
	}
	if th.Allow("person") {
		t.Fatal("second alert inside cooldown should be suppressed")
	}
	// 不同类别互不影响
	if !th.Allow("car") {
		t.Fatal("different label should pass")
	}

	now = base.Add(59 * time.Second)
	if th.Allow("person") {
		t.Fatal("59s is still inside cooldown")
	}
	now = base.Add(61 * time.Second)
	if !th.Allow("person") {
		t.Fatal("cooldown expired, alert should pass")
	}
}

type captureSender struct {
	m     sync.Mutex
	got   []Alert
	done  chan struct{}
	want  int
	fails bool
}

func (s *captureSender) Name() string { return "capture" }

func (s *captureSender) Send(_ context.Context, a Alert) error {
	s.m.Lock()
	s.got = append(s.got, a)
	n := len(s.got)
	s.m.Unlock()
	if n == s.want {
		close(s.done)
	}
	if s.fails {
		return context.DeadlineExceeded
	}
	return nil
}

func TestDispatcherDeliversToAllWorkers(t *testing.T) {
	sender := &captureSender{done: make(chan struct{}), want: 3}
	d := NewDispatcher(8, 2, sender)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	for i := 0; i < 3; i++ {
		d.Publish(Alert{Label: "person", CameraID: "cam1"})
	}

	select {
	case <-sender.done:
	case <-time.After(2 * time.Second):
		t.Fatal("alerts were not delivered")
	}
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	// 未启动工作池，队列容量 1，第二条必须被丢弃而不是阻塞
	d := NewDispatcher(1, 1, &captureSender{done: make(chan struct{}), want: 99})

	done := make(chan struct{})
	go func() {
		d.Publish(Alert{Label: "a"})
		d.Publish(Alert{Label: "b"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on full queue")
	}
}

func TestWebhookJSONPayload(t *testing.T) {
	var gotBody map[string]string
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL)
	err := s.Send(context.Background(), Alert{Label: "person", Conf: 0.91, CameraID: "cam1"})
	if err != nil {
		t.Fatal(err)
	}
	if gotContentType != "application/json" {
		t.Fatalf("unexpected content type: %s", gotContentType)
	}
	if !strings.Contains(gotBody["content"], "person") || !strings.Contains(gotBody["content"], "cam1") {
		t.Fatalf("unexpected content: %s", gotBody["content"])
	}
}

func TestWebhookDiscordMultipart(t *testing.T) {
	var gotContentType string
	var gotPayload string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		gotPayload = r.FormValue("payload_json")
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			return
		}
		defer f.Close()
		gotFile, _ = io.ReadAll(f)
	}))
	defer srv.Close()

	// URL 带 discord 字样且有快照时走 multipart
	s := NewWebhookSender(srv.URL + "/discord/webhook")
	err := s.Send(context.Background(), Alert{
		Label: "car", Conf: 0.8, CameraID: "cam2",
		Snapshot: []byte{0xff, 0xd8, 0xff},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Fatalf("expected multipart, got %s", gotContentType)
	}
	if !strings.Contains(gotPayload, "attachment://snapshot.jpg") {
		t.Fatalf("payload_json missing attachment ref: %s", gotPayload)
	}
	if len(gotFile) != 3 {
		t.Fatalf("snapshot bytes not forwarded, got %d", len(gotFile))
	}
}
