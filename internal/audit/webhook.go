package audit

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const maxResponseBodySize = 1024

// Webhook headers.
const (
	HeaderSignature = "X-Placement-Signature"
	HeaderEvent     = "X-Placement-Event"
	HeaderDelivery  = "X-Placement-Delivery"
)

// WebhookSink posts every event as JSON to one URL. When a secret is set the
// body is signed with HMAC-SHA256 in X-Placement-Signature.
type WebhookSink struct {
	url        string
	secret     string
	client     *http.Client
	maxRetries uint
	interval   time.Duration
	log        zerolog.Logger
}

// NewWebhookSink creates a sink delivering to url. Failed deliveries are
// retried up to three times; 4xx answers are not retried.
func NewWebhookSink(url, secret string, log zerolog.Logger) *WebhookSink {
	return &WebhookSink{
		url:        url,
		secret:     secret,
		client:     &http.Client{Timeout: 10 * time.Second},
		maxRetries: 3,
		interval:   time.Second,
		log:        log,
	}
}

// WithRetry sets the retry count and the first backoff interval.
func (s *WebhookSink) WithRetry(maxRetries uint, interval time.Duration) *WebhookSink {
	s.maxRetries = maxRetries
	s.interval = interval
	return s
}

func (s *WebhookSink) Write(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.interval
	attempt := 0
	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		return struct{}{}, s.post(ctx, event, payload)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(s.maxRetries+1),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn().Err(err).Str("event_id", event.ID).Int("attempt", attempt).Dur("retry_in", next).Msg("audit webhook delivery failed")
		}),
	)
	if err != nil {
		return fmt.Errorf("deliver audit event %s: %w", event.ID, err)
	}
	return nil
}

func (s *WebhookSink) post(ctx context.Context, event Event, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, event.Action)
	req.Header.Set(HeaderDelivery, event.ID)
	if s.secret != "" {
		req.Header.Set(HeaderSignature, ComputeSignature(payload, s.secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(fmt.Errorf("webhook answered %d: %s", resp.StatusCode, body))
	default:
		return fmt.Errorf("webhook answered %d: %s", resp.StatusCode, body)
	}
}

// ComputeSignature returns "sha256=" and the hex HMAC of payload.
func ComputeSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload.
func VerifySignature(payload []byte, signature, secret string) bool {
	return hmac.Equal([]byte(signature), []byte(ComputeSignature(payload, secret)))
}
