package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"auth-core-service/internal/service"
)

// WebhookSender posts codes to an external delivery gateway. The gateway
// owns the actual SMS/call/email transport; this side only reports success
// or failure of the handoff.
type WebhookSender struct {
	client *http.Client
	url    string
	logger *slog.Logger
}

func NewWebhookSender(url string, logger *slog.Logger) *WebhookSender {
	return &WebhookSender{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		logger: logger,
	}
}

func (s *WebhookSender) Send(ctx context.Context, username, code string, method service.DeliveryMethod) error {
	return s.post(ctx, map[string]string{
		"recipient": username,
		"code":      code,
		"method":    string(method),
	})
}

func (s *WebhookSender) SendCode(ctx context.Context, email, code string) error {
	return s.post(ctx, map[string]string{
		"recipient": email,
		"code":      code,
		"method":    "email",
	})
}

func (s *WebhookSender) post(ctx context.Context, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("delivery gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// LogSender stands in for a delivery gateway in development: the code is
// written to the log instead of being sent anywhere.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, username, code string, method service.DeliveryMethod) error {
	s.logger.InfoContext(ctx, "one-time password issued",
		"recipient", username,
		"method", string(method),
		"code", code,
	)
	return nil
}

func (s *LogSender) SendCode(ctx context.Context, email, code string) error {
	s.logger.InfoContext(ctx, "email verification code issued",
		"recipient", email,
		"code", code,
	)
	return nil
}
