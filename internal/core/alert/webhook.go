package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// WebhookSender 推送到 Discord 或 Slack 风格的 Webhook
// Discord 地址且带快照时走 multipart 附件，其余场景发纯 JSON
type WebhookSender struct {
	url    string
	client *http.Client
}

func NewWebhookSender(url string) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{},
	}
}

func (s *WebhookSender) Name() string { return "webhook" }

func (s *WebhookSender) Send(ctx context.Context, a Alert) error {
	content := fmt.Sprintf("🚨 **Sentinel Alert** \nDetected **%s** (%.2f) on Camera **%s**",
		a.Label, a.Conf, a.CameraID)

	if len(a.Snapshot) > 0 && strings.Contains(s.url, "discord") {
		return s.sendMultipart(ctx, content, a.Snapshot)
	}
	return s.sendJSON(ctx, content)
}

func (s *WebhookSender) sendJSON(ctx context.Context, content string) error {
	payload, err := json.Marshal(map[string]string{
		"content": content,
		"text":    content,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}

func (s *WebhookSender) sendMultipart(ctx context.Context, content string, snapshot []byte) error {
	payload, err := json.Marshal(map[string]any{
		"content": content,
		"embeds": []map[string]any{
			{"image": map[string]string{"url": "attachment://snapshot.jpg"}},
		},
	})
	if err != nil {
		return err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("payload_json", string(payload)); err != nil {
		return err
	}
	part, err := w.CreateFormFile("file", "snapshot.jpg")
	if err != nil {
		return err
	}
	if _, err := part.Write(snapshot); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post to webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
