// Package storage persists attachment payloads to an S3-compatible object
// store and hands back the public URL recorded in outgoing envelopes.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/vangitty/wechaty2/internal/domain"
)

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second
)

// UploadError reports an upload that exhausted all attempts.
type UploadError struct {
	Key      string
	Attempts int
	Err      error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload of %s failed after %d attempts: %v", e.Key, e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// Uploader writes payloads through a domain.ObjectStore with bounded,
// linearly backed-off retries.
type Uploader struct {
	store    domain.ObjectStore
	endpoint string
	bucket   string
	botID    string
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// UploaderConfig holds the uploader dependencies and tuning knobs.
type UploaderConfig struct {
	Store    domain.ObjectStore
	Endpoint string // base URL the bucket is served under
	Bucket   string
	BotID    string
	Attempts int           // default 3
	Backoff  time.Duration // sleep unit between attempts, default 1s
	Logger   *slog.Logger
}

func NewUploader(cfg UploaderConfig) *Uploader {
	if cfg.Attempts <= 0 {
		cfg.Attempts = defaultAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Uploader{
		store:    cfg.Store,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		bucket:   cfg.Bucket,
		botID:    cfg.BotID,
		attempts: cfg.Attempts,
		backoff:  cfg.Backoff,
		logger:   cfg.Logger,
	}
}

// Upload stores data under key and returns the deterministic object URL
// <endpoint>/<bucket>/<key>. Attempt N sleeps N×backoff before retrying;
// only the current event's goroutine is suspended. On exhaustion the last
// cause is wrapped in an *UploadError.
func (u *Uploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var lastErr error
	for attempt := 1; attempt <= u.attempts; attempt++ {
		metadata := map[string]string{
			"upload-timestamp": time.Now().UTC().Format(time.RFC3339),
			"upload-attempt":   strconv.Itoa(attempt),
			"bot-id":           u.botID,
		}

		u.logger.Debug("uploading object", "key", key, "size", len(data), "attempt", attempt)
		err := u.store.Put(ctx, u.bucket, key, data, contentType, metadata)
		if err == nil {
			url := u.ObjectURL(key)
			u.logger.Info("object uploaded", "key", key, "url", url, "attempt", attempt)
			return url, nil
		}

		lastErr = err
		u.logger.Warn("object upload failed", "key", key, "attempt", attempt, "err", err)
		if attempt < u.attempts {
			select {
			case <-ctx.Done():
				return "", &UploadError{Key: key, Attempts: attempt, Err: ctx.Err()}
			case <-time.After(time.Duration(attempt) * u.backoff):
			}
		}
	}

	return "", &UploadError{Key: key, Attempts: u.attempts, Err: lastErr}
}

// ObjectURL returns the URL an uploaded key is expected to be served under.
// It is a construction contract with the collector, not a reachability
// guarantee.
func (u *Uploader) ObjectURL(key string) string {
	return u.endpoint + "/" + u.bucket + "/" + key
}
