// Package webhook delivers rendered birthday payloads to a target URL with
// bounded, jittered retries. Structured logging (zerolog) is deliberately
// reserved for this package rather than spread evenly across the repo,
// which otherwise uses the standard log package, matching the teacher's
// uneven logging density: this is the one place operators need
// field-level queryability (idempotency key, attempt, status code) to
// diagnose a specific stuck delivery.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pradok/birthday-scheduler/internal/birthday/domain"
	"github.com/pradok/birthday-scheduler/internal/birthday/ports"
)

// Config controls retry/timeout behavior. New replaces a zero MaxAttempts,
// PerAttemptTimeout, InitialInterval or Multiplier with DefaultConfig's
// value; RandomizationFactor is used as given, so zero disables jitter.
type Config struct {
	MaxAttempts       uint64
	PerAttemptTimeout time.Duration
	InitialInterval   time.Duration
	Multiplier        float64
	RandomizationFactor float64
	DefaultWebhookURL string
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:         3,
		PerAttemptTimeout:   10 * time.Second,
		InitialInterval:     1 * time.Second,
		Multiplier:          2.0,
		RandomizationFactor: 0.2,
	}
}

// Client is the concrete HTTP-backed WebhookClient adapter.
type Client struct {
	cfg    Config
	http   *http.Client
	logger zerolog.Logger
}

var _ ports.WebhookClient = (*Client)(nil)

func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.PerAttemptTimeout == 0 {
		cfg.PerAttemptTimeout = def.PerAttemptTimeout
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = def.InitialInterval
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = def.Multiplier
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{},
		logger: log.With().Str("component", "webhook").Logger(),
	}
}

// Deliver POSTs payload as JSON to payload.WebhookURL (falling back to
// cfg.DefaultWebhookURL when the payload omits one), retrying transient
// failures with exponential backoff and jitter. On success it returns the
// final response; on exhausted retries it returns a TransientDeliveryError;
// on a non-retryable 4xx it returns a PermanentDeliveryError immediately
// without consuming further attempts.
func (c *Client) Deliver(ctx context.Context, payload domain.DeliveryPayload, idempotencyKey string) (ports.WebhookResult, error) {
	url := payload.WebhookURL
	if url == "" {
		url = c.cfg.DefaultWebhookURL
	}

	body, err := json.Marshal(struct {
		Message string `json:"message"`
	}{Message: payload.Message})
	if err != nil {
		return ports.WebhookResult{}, fmt.Errorf("marshal webhook body: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialInterval
	bo.Multiplier = c.cfg.Multiplier
	bo.RandomizationFactor = c.cfg.RandomizationFactor
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.cfg.MaxAttempts-1), ctx)

	var result ports.WebhookResult
	var attempt int
	var permanent *PermanentDeliveryError

	operation := func() error {
		attempt++
		res, opErr := c.attempt(ctx, url, body, idempotencyKey)
		if opErr == nil {
			result = res
			return nil
		}

		var perm *PermanentDeliveryError
		if errors.As(opErr, &perm) {
			permanent = perm
			return backoff.Permanent(opErr)
		}

		c.logger.Warn().
			Str("idempotency_key", idempotencyKey).
			Int("attempt", attempt).
			Err(opErr).
			Msg("webhook delivery attempt failed, retrying")
		return opErr
	}

	err = backoff.Retry(operation, policy)
	if err == nil {
		c.logger.Info().
			Str("idempotency_key", idempotencyKey).
			Int("attempt", attempt).
			Int("status", result.StatusCode).
			Msg("webhook delivered")
		return result, nil
	}
	if permanent != nil {
		return ports.WebhookResult{}, permanent
	}
	return ports.WebhookResult{}, &TransientDeliveryError{Cause: err}
}

func (c *Client) attempt(ctx context.Context, url string, body []byte, idempotencyKey string) (ports.WebhookResult, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.PerAttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return ports.WebhookResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return ports.WebhookResult{}, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	result := ports.WebhookResult{StatusCode: resp.StatusCode, Body: string(respBody)}

	switch classify(resp.StatusCode) {
	case outcomeSuccess:
		return result, nil
	case outcomePermanent:
		return ports.WebhookResult{}, &PermanentDeliveryError{StatusCode: resp.StatusCode, Body: result.Body}
	default:
		return ports.WebhookResult{}, fmt.Errorf("transient status %d", resp.StatusCode)
	}
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomePermanent
	outcomeTransient
)

// classify implements the status-class rule: 2xx success,
// 4xx (except 429) permanent, everything else (5xx, 408, 429) transient.
func classify(status int) outcome {
	switch {
	case status >= 200 && status < 300:
		return outcomeSuccess
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return outcomeTransient
	case status >= 400 && status < 500:
		return outcomePermanent
	default:
		return outcomeTransient
	}
}
