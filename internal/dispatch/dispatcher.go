// Package dispatch delivers canonical envelopes to the downstream webhook
// collector with bounded retries.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second
	maxErrorBody    = 2048
)

// HTTPError is a non-2xx collector response, kept for diagnostics.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// Dispatcher POSTs JSON payloads to a single webhook endpoint.
type Dispatcher struct {
	url      string
	botID    string
	attempts int
	backoff  time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// DispatcherConfig holds the webhook target and tuning knobs.
type DispatcherConfig struct {
	URL      string // empty disables delivery (valid terminal configuration)
	BotID    string
	Attempts int           // default 3
	Backoff  time.Duration // sleep unit between attempts, default 1s
	Client   *http.Client  // default SharedHTTPClient
	Logger   *slog.Logger
}

func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Client == nil {
		cfg.Client = SharedHTTPClient(30 * time.Second)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		url:      cfg.URL,
		botID:    cfg.BotID,
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
		client:   cfg.Client,
		logger:   cfg.Logger,
	}
}

// Dispatch sends payload as a JSON POST body. Each attempt serializes a
// fresh sanitized copy (the collector rejects null values). Attempt N sleeps
// N×backoff before the next try; a non-2xx status counts as a failure. With
// no endpoint configured the call degrades to a log statement.
func (d *Dispatcher) Dispatch(ctx context.Context, payload any) error {
	if d.url == "" {
		d.logger.Debug("no webhook endpoint configured, skipping delivery")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= d.attempts; attempt++ {
		body, err := SanitizeJSON(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}

		err = d.post(ctx, body, attempt)
		if err == nil {
			d.logger.Info("envelope delivered", "attempt", attempt, "bytes", len(body))
			return nil
		}

		lastErr = err
		d.logger.Warn("webhook delivery failed", "attempt", attempt, "err", err)
		if attempt < d.attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * d.backoff):
			}
		}
	}

	return fmt.Errorf("webhook delivery failed after %d attempts: %w", d.attempts, lastErr)
}

func (d *Dispatcher) post(ctx context.Context, body []byte, attempt int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Bot-ID", d.botID)
	req.Header.Set("X-Retry-Attempt", strconv.Itoa(attempt))

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Status: resp.StatusCode, Body: string(snippet)}
	}
	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)
	return nil
}
