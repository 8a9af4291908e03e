package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/ivfreader"
)

// PeerSession 摄像头侧的 WebRTC 会话
// 每次 Connect 都重建 PeerConnection，送帧协程全程只有一个，
// 没有存活的轨道时码流直接丢弃，镜头在断网期间保持开启
type PeerSession struct {
	m        sync.Mutex
	signaler *Signaler
	source   io.Reader // IVF 码流
	fps      int
	pc       *webrtc.PeerConnection
	track    atomic.Pointer[webrtc.TrackLocalStaticSample]
}

func NewPeerSession(signaler *Signaler, ivfSource io.Reader, fps int) *PeerSession {
	if fps <= 0 {
		fps = 15
	}
	return &PeerSession{
		signaler: signaler,
		source:   ivfSource,
		fps:      fps,
	}
}

// State 当前连接状态，未建连时为 new
func (p *PeerSession) State() string {
	p.m.Lock()
	defer p.m.Unlock()
	if p.pc == nil {
		return "new"
	}
	return p.pc.ConnectionState().String()
}

// Connect 重建对等连接并完成信令握手
func (p *PeerSession) Connect(ctx context.Context) error {
	p.m.Lock()
	defer p.m.Unlock()

	if p.pc != nil {
		_ = p.pc.Close()
		p.pc = nil
		p.track.Store(nil)
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
		"video", "sentinel",
	)
	if err != nil {
		_ = pc.Close()
		return err
	}
	sender, err := pc.AddTrack(track)
	if err != nil {
		_ = pc.Close()
		return err
	}
	// 排空 RTCP，否则拥塞反馈会堵死底层连接
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return err
	}

	// 等待 ICE 候选收集完毕，信令只跑一轮
	select {
	case <-webrtc.GatheringCompletePromise(pc):
	case <-ctx.Done():
		_ = pc.Close()
		return ctx.Err()
	}

	answer, err := p.signaler.Exchange(ctx, *pc.LocalDescription())
	if err != nil {
		_ = pc.Close()
		return err
	}
	if err := pc.SetRemoteDescription(answer); err != nil {
		_ = pc.Close()
		return err
	}

	p.pc = pc
	p.track.Store(track)
	return nil
}

// StartFeeding 持续消费 IVF 码流并写入当前轨道
// 必须在编码器启动后调用一次，阻塞直到码流结束或 ctx 取消
func (p *PeerSession) StartFeeding(ctx context.Context) error {
	ivf, _, err := ivfreader.NewWith(p.source)
	if err != nil {
		return err
	}
	duration := time.Second / time.Duration(p.fps)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, _, err := ivf.ParseNextFrame()
		if err != nil {
			return err
		}

		track := p.track.Load()
		if track == nil {
			continue
		}
		if err := track.WriteSample(media.Sample{Data: frame, Duration: duration}); err != nil {
			slog.Warn("failed to write sample", "err", err)
		}
	}
}

// Close 关闭会话
func (p *PeerSession) Close() error {
	p.m.Lock()
	defer p.m.Unlock()
	p.track.Store(nil)
	if p.pc == nil {
		return nil
	}
	err := p.pc.Close()
	p.pc = nil
	return err
}
