// Package router orchestrates the per-event pipeline: classification,
// attachment extraction, blob upload, envelope assembly, and delivery. It is
// the single error boundary of the bridge: no event, however malformed, may
// take the process down.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vangitty/wechaty2/internal/attachment"
	"github.com/vangitty/wechaty2/internal/classify"
	"github.com/vangitty/wechaty2/internal/domain"
	"github.com/vangitty/wechaty2/internal/envelope"
	"github.com/vangitty/wechaty2/internal/journal"
	"github.com/vangitty/wechaty2/internal/metrics"
)

const defaultConcurrency = 8

// Deliverer sends a payload to the downstream collector.
type Deliverer interface {
	Dispatch(ctx context.Context, payload any) error
}

// Uploader persists attachment bytes and returns the object URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Recorder appends pipeline outcomes to the audit journal.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry)
}

// Router drives session events through the pipeline.
type Router struct {
	botID       string
	extractor   *attachment.Extractor
	uploader    Uploader
	deliverer   Deliverer
	journal     Recorder // optional
	logger      *slog.Logger
	concurrency int
}

// Config holds the router dependencies.
type Config struct {
	BotID       string
	Extractor   *attachment.Extractor
	Uploader    Uploader
	Deliverer   Deliverer
	Journal     Recorder
	Logger      *slog.Logger
	Concurrency int // max events in flight, default 8
}

func New(cfg Config) *Router {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{
		botID:       cfg.BotID,
		extractor:   cfg.Extractor,
		uploader:    cfg.Uploader,
		deliverer:   cfg.Deliverer,
		journal:     cfg.Journal,
		logger:      cfg.Logger,
		concurrency: cfg.Concurrency,
	}
}

// Run consumes session events until ctx is canceled or the channel closes.
// Each event is handled on its own goroutine; events interleave freely and
// complete in no particular order.
func (r *Router) Run(ctx context.Context, events <-chan domain.Event) {
	r.logger.Info("event router started", "concurrency", r.concurrency)

	sem := make(chan struct{}, r.concurrency)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("event router stopping")
			return
		case ev, ok := <-events:
			if !ok {
				r.logger.Info("event bus closed, router stopping")
				return
			}
			sem <- struct{}{}
			go func(ev domain.Event) {
				defer func() { <-sem }()
				r.Handle(ctx, ev)
			}(ev)
		}
	}
}

// Handle routes a single session event. It never returns an error and never
// panics outward.
func (r *Router) Handle(ctx context.Context, ev domain.Event) {
	metrics.EventsTotal.Inc()
	switch ev.Type {
	case domain.EventScan:
		r.HandleScan(ev.QRCode, ev.Status)
	case domain.EventLogin:
		r.HandleLogin(ctx, ev.User)
	case domain.EventLogout:
		r.HandleLogout(ctx, ev.User, ev.Reason)
	case domain.EventMessage:
		r.HandleMessage(ctx, ev.Message)
	case domain.EventError:
		r.HandleError(ctx, ev.Err)
	default:
		r.logger.Warn("unknown session event", "type", ev.Type)
	}
}

// HandleScan surfaces the login QR code. Scan events stay local, nothing is
// forwarded downstream.
func (r *Router) HandleScan(qrcodeURL string, status int) {
	if status == 2 {
		r.logger.Info("scan QR code to log in", "url", qrcodeURL)
		return
	}
	r.logger.Info("scan status changed", "status", status)
}

// HandleLogin forwards a login envelope, best effort.
func (r *Router) HandleLogin(ctx context.Context, user string) {
	r.logger.Info("session login", "user", user)
	env := envelope.BuildSession(domain.KindLogin, user, "", r.botID)
	if err := r.deliver(ctx, env); err != nil {
		r.logger.Error("login envelope delivery failed", "user", user, "err", err)
		r.record(ctx, user, domain.KindLogin, "", journal.StateSuppressed, string(classify.Classify(err)))
		return
	}
	r.record(ctx, user, domain.KindLogin, "", journal.StateDelivered, "")
}

// HandleLogout forwards a logout envelope, best effort.
func (r *Router) HandleLogout(ctx context.Context, user, reason string) {
	r.logger.Info("session logout", "user", user, "reason", reason)
	env := envelope.BuildSession(domain.KindLogout, user, reason, r.botID)
	if err := r.deliver(ctx, env); err != nil {
		r.logger.Error("logout envelope delivery failed", "user", user, "err", err)
		r.record(ctx, user, domain.KindLogout, "", journal.StateSuppressed, string(classify.Classify(err)))
		return
	}
	r.record(ctx, user, domain.KindLogout, "", journal.StateDelivered, "")
}

// HandleError forwards a session-level error as an error envelope. Its own
// delivery failure is swallowed, error reporting never recurses.
func (r *Router) HandleError(ctx context.Context, cause error) {
	if cause == nil {
		return
	}
	r.logger.Error("session error", "err", cause)
	r.reportError(ctx, "", cause)
}

// HandleMessage runs the full pipeline for one message. Every failure path
// ends in at most one error-envelope dispatch; nothing escapes to the caller.
func (r *Router) HandleMessage(ctx context.Context, msg domain.Message) {
	messageID := "unknown"
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("message handler panic", "message_id", messageID, "panic", rec)
			r.reportError(ctx, messageID, fmt.Errorf("message processing panic: %v", rec))
		}
	}()

	if msg == nil {
		r.logger.Error("nil message event received")
		return
	}

	mt := msg.Type()
	category := mt.Category()
	messageID = envelope.EnsureMessageID(msg.ID())

	if mt.Filtered() {
		metrics.FilteredTotal.Inc()
		r.logger.Debug("message filtered", "message_id", messageID, "type", int(mt), "category", category)
		r.record(ctx, messageID, domain.KindMessage, category, journal.StateFiltered, "")
		return
	}

	r.logger.Info("message received", "message_id", messageID, "category", category)

	env, err := r.normalize(ctx, msg, messageID)
	if err != nil {
		r.logger.Error("message normalization failed", "message_id", messageID, "err", err)
		fail := envelope.BuildFailure(msg, messageID, r.botID, err)
		metrics.ErrorEnvelopes.Inc()
		if derr := r.deliver(ctx, fail); derr != nil {
			r.logger.Error("failure report delivery failed, suppressing",
				"message_id", messageID, "err", derr)
			r.record(ctx, messageID, domain.KindMessage, category, journal.StateSuppressed, string(classify.Classify(err)))
			return
		}
		r.record(ctx, messageID, domain.KindMessage, category, journal.StateFailed, string(classify.Classify(err)))
		return
	}

	if err := r.deliver(ctx, env); err != nil {
		metrics.DeliveryFailures.Inc()
		r.logger.Error("envelope delivery failed", "message_id", messageID, "err", err)
		r.reportError(ctx, messageID, err)
		r.record(ctx, messageID, domain.KindMessage, category, journal.StateFailed, string(classify.Classify(err)))
		return
	}

	metrics.DeliveriesTotal.Inc()
	r.record(ctx, messageID, domain.KindMessage, category, journal.StateDelivered, "")
}

// normalize extracts and uploads the attachment (when there is one) and
// assembles the message envelope.
func (r *Router) normalize(ctx context.Context, msg domain.Message, messageID string) (domain.MessageEnvelope, error) {
	att, err := r.extractor.Extract(ctx, msg, messageID)
	switch {
	case errors.Is(err, attachment.ErrNotAttachment):
		att = nil
	case err != nil:
		return domain.MessageEnvelope{}, err
	default:
		url, uerr := r.uploader.Upload(ctx, att.StorageKey, att.Data, att.MimeType)
		if uerr != nil {
			metrics.UploadFailures.Inc()
			return domain.MessageEnvelope{}, uerr
		}
		metrics.UploadsTotal.Inc()
		att.StorageURL = url
	}
	return envelope.Build(msg, messageID, r.botID, att), nil
}

// reportError dispatches a minimal error envelope exactly once. A failure
// here is terminal for the event: logged and suppressed.
func (r *Router) reportError(ctx context.Context, messageID string, cause error) {
	env := envelope.BuildError(messageID, r.botID, cause)
	metrics.ErrorEnvelopes.Inc()
	if err := r.deliverer.Dispatch(ctx, env); err != nil {
		r.logger.Error("error envelope delivery failed, suppressing",
			"message_id", messageID, "err", err)
	}
}

func (r *Router) deliver(ctx context.Context, payload any) error {
	start := time.Now()
	err := r.deliverer.Dispatch(ctx, payload)
	metrics.DeliveryLatency.Observe(time.Since(start).Seconds())
	return err
}

func (r *Router) record(ctx context.Context, eventID, kind, category, state, errorKind string) {
	if r.journal == nil {
		return
	}
	r.journal.Record(ctx, journal.Entry{
		EventID:   eventID,
		Kind:      kind,
		Category:  category,
		State:     state,
		ErrorKind: errorKind,
	})
}
