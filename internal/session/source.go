// Package session connects to the chat puppet gateway and turns its frames
// into domain events. The gateway owns the actual chat network protocol;
// the bridge only sees the event stream defined here.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vangitty/wechaty2/internal/domain"
)

const (
	reconnectBackoff    = 2 * time.Second
	maxReconnectBackoff = 30 * time.Second
)

// Source reads session events from the gateway WebSocket and publishes
// them on the event bus.
type Source struct {
	url    string
	token  string
	bus    domain.EventBus
	client *http.Client // for lazy file fetches
	logger *slog.Logger
}

// SourceConfig configures a gateway connection.
type SourceConfig struct {
	URL    string // ws:// or wss:// gateway endpoint
	Token  string
	Bus    domain.EventBus
	Client *http.Client
	Logger *slog.Logger
}

func NewSource(cfg SourceConfig) *Source {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Source{
		url:    cfg.URL,
		token:  cfg.Token,
		bus:    cfg.Bus,
		client: cfg.Client,
		logger: cfg.Logger,
	}
}

// Run connects to the gateway and pumps events until ctx is canceled.
// Connection loss triggers a reconnect with growing backoff; a lost
// connection never takes the process down.
func (s *Source) Run(ctx context.Context) error {
	backoff := reconnectBackoff
	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("gateway connection lost, reconnecting", "err", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxReconnectBackoff {
			backoff += reconnectBackoff
		}
	}
}

func (s *Source) connectAndRead(ctx context.Context) error {
	header := http.Header{}
	if s.token != "" {
		header.Set("Authorization", "Bearer "+s.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial gateway (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("dial gateway: %w", err)
	}
	defer conn.Close()
	s.logger.Info("connected to gateway", "url", s.url)

	// Unblock ReadMessage on shutdown.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway frame: %w", err)
		}
		ev, err := s.decodeFrame(raw)
		if err != nil {
			s.logger.Warn("skipping malformed gateway frame", "err", err)
			continue
		}
		s.bus.Publish(ev)
	}
}

// decodeFrame turns a raw gateway frame into a domain event.
func (s *Source) decodeFrame(raw []byte) (domain.Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return domain.Event{}, fmt.Errorf("decode frame: %w", err)
	}

	ev := domain.Event{Timestamp: time.Now()}
	switch f.Event {
	case "scan":
		ev.Type = domain.EventScan
		ev.QRCode = f.Payload.QRCode
		ev.Status = f.Payload.Status
	case "login":
		ev.Type = domain.EventLogin
		ev.User = f.Payload.User
	case "logout":
		ev.Type = domain.EventLogout
		ev.User = f.Payload.User
		ev.Reason = f.Payload.Reason
	case "message":
		ev.Type = domain.EventMessage
		ev.Message = &gatewayMessage{p: f.Payload, client: s.client, token: s.token}
	case "error":
		ev.Type = domain.EventError
		msg := f.Payload.Message
		if msg == "" {
			msg = "unspecified gateway error"
		}
		ev.Err = errors.New(msg)
	default:
		return domain.Event{}, fmt.Errorf("unknown frame event %q", f.Event)
	}
	return ev, nil
}
