package stream

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gowvp/sentinel/internal/conf"
	"github.com/gowvp/sentinel/internal/core/alert"
	"github.com/gowvp/sentinel/internal/core/event"
	"github.com/gowvp/sentinel/internal/core/intake"
	"github.com/gowvp/sentinel/internal/core/pipeline"
	"github.com/gowvp/sentinel/internal/core/record"
	"github.com/gowvp/sentinel/internal/media"
	"github.com/gowvp/sentinel/pkg/ffstream"
	"github.com/ixugo/goddd/pkg/conc"
	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media/ivfwriter"
)

// Camera 一路在线摄像头的服务端管线
type Camera struct {
	ID          string
	ConnectedAt time.Time

	pc        *webrtc.PeerConnection
	decoder   *ffstream.Decoder
	processor *pipeline.Processor
	recorder  *record.Supervisor
	cancel    context.CancelFunc
}

// Hub 在线摄像头集合
// 每接受一条媒体轨道就组装一条 解码→进帧→检测→录像 的管线，断链即拆除
type Hub struct {
	cfg      *conf.Bootstrap
	events   event.Core
	alerts   *alert.Core
	detector pipeline.Detector
	register *intake.Register
	cameras  conc.Map[string, *Camera]
}

func NewHub(cfg *conf.Bootstrap, events event.Core, alerts *alert.Core) *Hub {
	return &Hub{
		cfg:      cfg,
		events:   events,
		alerts:   alerts,
		detector: pipeline.NewHTTPDetector(cfg.Pipeline.DetectorURL, cfg.Pipeline.MinConfidence),
		register: intake.NewRegister(),
	}
}

// Register 最新帧寄存器，供快照类接口读取
func (h *Hub) Register() *intake.Register { return h.register }

// HandleOffer 信令入口，返回 answer
func (h *Hub) HandleOffer(ctx context.Context, cameraID string, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		slog.Info("video track accepted", "camera_id", cameraID, "codec", track.Codec().MimeType)
		go h.runCamera(cameraID, pc, track)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			// 回调在 pion 的队列协程上异步触发，重连后可能晚于新管线入驻，
			// 只拆仍归属本连接的管线
			h.teardownOwned(cameraID, pc)
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		_ = pc.Close()
		return webrtc.SessionDescription{}, fmt.Errorf("bad offer: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		_ = pc.Close()
		return webrtc.SessionDescription{}, err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		_ = pc.Close()
		return webrtc.SessionDescription{}, err
	}
	select {
	case <-webrtc.GatheringCompletePromise(pc):
	case <-ctx.Done():
		_ = pc.Close()
		return webrtc.SessionDescription{}, ctx.Err()
	}
	return *pc.LocalDescription(), nil
}

// runCamera 组装并运行一路管线，直到轨道结束
func (h *Hub) runCamera(cameraID string, pc *webrtc.PeerConnection, track *webrtc.TrackRemote) {
	// 同名摄像头重连时先拆掉旧管线
	h.Teardown(cameraID)

	width, height := h.cfg.Recording.Width, h.cfg.Recording.Height
	decoder, err := ffstream.NewDecoder(ffstream.DecoderConfig{Width: width, Height: height})
	if err != nil {
		slog.Error("failed to build decoder", "camera_id", cameraID, "err", err)
		return
	}
	if err := decoder.Start(); err != nil {
		slog.Error("failed to start decoder", "camera_id", cameraID, "err", err)
		return
	}

	ivf, err := ivfwriter.NewWith(decoder.Input())
	if err != nil {
		slog.Error("failed to build ivf muxer", "camera_id", cameraID, "err", err)
		_ = decoder.Stop()
		return
	}

	lifecycle := pipeline.NewLifecycle(cameraID, h.events, h.alerts,
		h.cfg.Pipeline.StalenessWindow.Duration(), h.cfg.Pipeline.SnapshotDir)
	processor := pipeline.NewProcessor(cameraID, h.detector, lifecycle, h.cfg.Pipeline.InferenceInterval)

	var recorder *record.Supervisor
	if !h.cfg.Recording.Disabled {
		recorder = record.NewSupervisor(record.Config{
			CameraID:     cameraID,
			StorageDir:   h.cfg.Recording.StorageDir,
			Width:        width,
			Height:       height,
			FPS:          h.cfg.Recording.FPS,
			SegmentTime:  h.cfg.Recording.SegmentTime,
			PlaylistSize: h.cfg.Recording.PlaylistSize,
		})
		if err := recorder.Start(); err != nil {
			slog.Error("failed to start recorder", "camera_id", cameraID, "err", err)
			recorder = nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cam := &Camera{
		ID:          cameraID,
		ConnectedAt: time.Now(),
		pc:          pc,
		decoder:     decoder,
		processor:   processor,
		recorder:    recorder,
		cancel:      cancel,
	}
	h.cameras.Store(cameraID, cam)

	in := intake.New(cameraID, intake.NewDecoderSource(cameraID, width, height, decoder), h.register,
		intake.WithOnFrame(func(f *media.Frame) *media.Frame {
			out := processor.Process(ctx, f)
			if recorder != nil {
				if err := recorder.Push(out); err != nil {
					slog.Error("failed to push frame to recorder", "camera_id", cameraID, "err", err)
				}
			}
			return out
		}),
		intake.WithOnExit(func(error) { h.teardownOwned(cameraID, pc) }),
	)
	go in.Run(ctx)

	// RTP 泵：轨道 → IVF 封装 → 解码器 stdin
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			slog.Warn("track ended", "camera_id", cameraID, "err", err)
			break
		}
		if err := ivf.WriteRTP(pkt); err != nil {
			slog.Warn("ivf mux failed", "camera_id", cameraID, "err", err)
			break
		}
	}
	h.teardownOwned(cameraID, pc)
}

// Teardown 拆除一路管线，幂等
func (h *Hub) Teardown(cameraID string) {
	cam, ok := h.cameras.Load(cameraID)
	if !ok {
		return
	}
	h.destroy(cam)
}

// teardownOwned 仅当该摄像头的管线仍归属指定连接时拆除
// 旧连接关闭后残留的回调不会误拆同名摄像头新建的管线
func (h *Hub) teardownOwned(cameraID string, pc *webrtc.PeerConnection) {
	cam, ok := h.cameras.Load(cameraID)
	if !ok || cam.pc != pc {
		return
	}
	h.destroy(cam)
}

func (h *Hub) destroy(cam *Camera) {
	h.cameras.Delete(cam.ID)

	cam.cancel()
	if cam.recorder != nil {
		_ = cam.recorder.Stop()
	}
	if cam.decoder != nil {
		_ = cam.decoder.Stop()
	}
	if cam.pc != nil {
		_ = cam.pc.Close()
	}
	h.register.Drop(cam.ID)
	slog.Info("camera torn down", "camera_id", cam.ID)
}

// Shutdown 拆除全部在线摄像头
func (h *Hub) Shutdown() {
	h.cameras.Range(func(id string, _ *Camera) bool {
		h.Teardown(id)
		return true
	})
}

// CameraStatus 摄像头概览
type CameraStatus struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	ActiveTracks int       `json:"active_tracks"`
	Recording    bool      `json:"recording"`
	ConnectedAt  time.Time `json:"connected_at"`
}

// Cameras 在线摄像头列表
func (h *Hub) Cameras() []CameraStatus {
	out := make([]CameraStatus, 0, 4)
	h.cameras.Range(func(id string, cam *Camera) bool {
		st := CameraStatus{
			ID:           id,
			Status:       "ONLINE",
			ActiveTracks: cam.processor.ActiveTracks(),
			ConnectedAt:  cam.ConnectedAt,
		}
		if cam.recorder != nil {
			st.Recording = cam.recorder.Recording()
		}
		out = append(out, st)
		return true
	})
	return out
}

// Recorder 返回某路摄像头的录像监管器
func (h *Hub) Recorder(cameraID string) (*record.Supervisor, bool) {
	cam, ok := h.cameras.Load(cameraID)
	if !ok || cam.recorder == nil {
		return nil, false
	}
	return cam.recorder, true
}
