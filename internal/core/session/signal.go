package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/pion/webrtc/v3"
)

// 信令必须快速失败，弱网下拖长超时只会推迟 DDIL 判定
const signalTimeout = 2 * time.Second

// Signaler 通过服务端 /offer 接口交换 SDP
type Signaler struct {
	url      string
	cameraID int
	client   *http.Client
}

func NewSignaler(url string, cameraID int) *Signaler {
	return &Signaler{
		url:      url,
		cameraID: cameraID,
		client:   &http.Client{Timeout: signalTimeout},
	}
}

type offerRequest struct {
	SDP      string `json:"sdp"`
	Type     string `json:"type"`
	CameraID int    `json:"camera_id"`
}

type answerResponse struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// Exchange 提交 offer 换取 answer
func (s *Signaler) Exchange(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	payload, err := json.Marshal(offerRequest{
		SDP:      offer.SDP,
		Type:     offer.Type.String(),
		CameraID: s.cameraID,
	})
	if err != nil {
		return webrtc.SessionDescription{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("signaling failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return webrtc.SessionDescription{}, fmt.Errorf("signaling server returned %s", resp.Status)
	}

	var answer answerResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("malformed answer: %w", err)
	}
	return webrtc.SessionDescription{
		SDP:  answer.SDP,
		Type: webrtc.NewSDPType(answer.Type),
	}, nil
}
