package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/sentinel/internal/conf"
	"github.com/gowvp/sentinel/internal/core/event"
	"github.com/gowvp/sentinel/internal/core/stream"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bc := conf.SetupConfig(filepath.Join(t.TempDir(), "missing.toml"))
	bc.Recording.StorageDir = t.TempDir()
	bc.Pipeline.SnapshotDir = t.TempDir()

	hub := stream.NewHub(bc, event.Core{}, nil)
	t.Cleanup(hub.Shutdown)

	r := gin.New()
	RegisterWebRTC(r, NewWebRTCAPI(hub))
	RegisterRecording(r, NewRecordingAPI(hub, bc))
	return r
}

func TestFindCamerasEmpty(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/cameras", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "items") {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestSnapshotOfflineCamera(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/cameras/cam1/snapshot", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for offline camera, got %d", w.Code)
	}
}

func TestPlaylistOfflineCamera(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/recordings/cam1/index.m3u8", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for offline camera, got %d", w.Code)
	}
}

func TestOfferRejectsMalformedBody(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/offer", strings.NewReader(`{"sdp":""}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code == http.StatusOK {
		t.Fatalf("offer without sdp/type must not return 200: %s", w.Body.String())
	}
}

func TestFindRecordingsEmpty(t *testing.T) {
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/recordings", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
