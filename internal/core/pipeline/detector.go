package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"time"

	"github.com/gowvp/sentinel/internal/media"
)

// Detector 目标检测服务
type Detector interface {
	Detect(ctx context.Context, frame *media.Frame) ([]Detection, error)
}

// prediction 检测服务的返回结构
type prediction struct {
	ClassName  string    `json:"class_name"`
	Box        []float32 `json:"box"` // [x1, y1, x2, y2]
	Confidence float32   `json:"confidence"`
}

// HTTPDetector 外部检测服务的 HTTP 客户端
// 提交 JPEG 图像，解析预测数组，低置信度结果在客户端过滤
type HTTPDetector struct {
	url     string
	minConf float32
	client  *http.Client
}

func NewHTTPDetector(url string, minConf float32) *HTTPDetector {
	return &HTTPDetector{
		url:     url,
		minConf: minConf,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, frame *media.Frame) ([]Detection, error) {
	img, err := frame.EncodeJPEG(90)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(img))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detector unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("detector returned %s", resp.Status)
	}

	var preds []prediction
	if err := json.NewDecoder(resp.Body).Decode(&preds); err != nil {
		return nil, fmt.Errorf("failed to decode predictions: %w", err)
	}

	out := make([]Detection, 0, len(preds))
	for _, p := range preds {
		if p.Confidence <= d.minConf {
			continue
		}
		if len(p.Box) != 4 {
			slog.Warn("malformed prediction box", "class", p.ClassName, "box", p.Box)
			continue
		}
		det, err := NewDetection(p.ClassName, p.Confidence, image.Rect(
			int(p.Box[0]), int(p.Box[1]), int(p.Box[2]), int(p.Box[3]),
		))
		if err != nil {
			slog.Warn("dropping invalid prediction", "class", p.ClassName, "err", err)
			continue
		}
		out = append(out, det)
	}
	return out, nil
}
