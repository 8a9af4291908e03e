package camapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type fakeController struct {
	width, height int
	alive         bool
	calls         int
}

func (f *fakeController) Resolution() (int, int) { return f.width, f.height }

func (f *fakeController) SetResolution(w, h int) error {
	f.calls++
	f.width, f.height = w, h
	return nil
}

func (f *fakeController) Alive() bool { return f.alive }

func TestParseResolution(t *testing.T) {
	w, h, err := parseResolution("640x480")
	if err != nil || w != 640 || h != 480 {
		t.Fatalf("parse 640x480: %d %d %v", w, h, err)
	}
	if _, _, err := parseResolution("640"); err == nil {
		t.Fatal("missing separator should fail")
	}
	if _, _, err := parseResolution("0x480"); err == nil {
		t.Fatal("zero width should fail")
	}
	if _, _, err := parseResolution("axb"); err == nil {
		t.Fatal("non-numeric should fail")
	}
}

func TestSetConfigAppliesResolution(t *testing.T) {
	ctrl := fakeController{width: 320, height: 240, alive: true}
	h := NewHTTPHandler(NewAPI(&ctrl), false)

	req := httptest.NewRequest(http.MethodPost, "/config", strings.NewReader(`{"resolution":"640x480"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ctrl.calls != 1 || ctrl.width != 640 || ctrl.height != 480 {
		t.Fatalf("controller not updated: %+v", ctrl)
	}
}

func TestSetConfigRejectsMalformedResolution(t *testing.T) {
	ctrl := fakeController{width: 320, height: 240}
	h := NewHTTPHandler(NewAPI(&ctrl), false)

	req := httptest.NewRequest(http.MethodPost, "/config", strings.NewReader(`{"resolution":"garbage"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code == http.StatusOK {
		t.Fatalf("malformed resolution must not return 200: %s", w.Body.String())
	}
	if ctrl.calls != 0 {
		t.Fatal("controller must not be touched on bad input")
	}
}

func TestGetStatus(t *testing.T) {
	ctrl := fakeController{width: 320, height: 240, alive: true}
	h := NewHTTPHandler(NewAPI(&ctrl), false)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "320x240") || !strings.Contains(body, "true") {
		t.Fatalf("unexpected status body: %s", body)
	}
}
