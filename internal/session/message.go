package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vangitty/wechaty2/internal/domain"
)

// maxPayloadBytes caps a single attachment download from the gateway.
const maxPayloadBytes = 64 << 20

// wire types decoded from gateway frames.

type frame struct {
	Event   string          `json:"event"`
	Payload payload         `json:"payload"`
}

type payload struct {
	// scan
	QRCode string `json:"qrcode"`
	Status int    `json:"status"`
	// login / logout
	User   string `json:"user"`
	Reason string `json:"reason"`
	// error
	Message string `json:"message"`
	// message
	ID        string       `json:"id"`
	Type      int          `json:"type"`
	Text      string       `json:"text"`
	Timestamp int64        `json:"timestamp"` // unix milliseconds
	Talker    *participant `json:"talker"`
	Room      *roomInfo    `json:"room"`
	File      *fileInfo    `json:"file"`
}

type participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type roomInfo struct {
	ID    string `json:"id"`
	Topic string `json:"topic"`
}

type fileInfo struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"`
}

// gatewayMessage adapts a message frame to domain.Message.
type gatewayMessage struct {
	p      payload
	client *http.Client
	token  string
}

func (m *gatewayMessage) ID() string               { return m.p.ID }
func (m *gatewayMessage) Type() domain.MessageType { return domain.MessageType(m.p.Type) }
func (m *gatewayMessage) Text() string             { return m.p.Text }

func (m *gatewayMessage) Date() time.Time {
	if m.p.Timestamp == 0 {
		return time.Time{}
	}
	return time.UnixMilli(m.p.Timestamp)
}

func (m *gatewayMessage) Talker() domain.Contact {
	if m.p.Talker == nil {
		return nil
	}
	return &gatewayContact{*m.p.Talker}
}

func (m *gatewayMessage) Room() domain.Room {
	if m.p.Room == nil {
		return nil
	}
	return &gatewayRoom{*m.p.Room}
}

func (m *gatewayMessage) ToFileBox() (domain.FileBox, error) {
	if m.p.File == nil || m.p.File.URL == "" {
		return nil, nil
	}
	return &gatewayFileBox{info: *m.p.File, client: m.client, token: m.token}, nil
}

type gatewayContact struct{ p participant }

func (c *gatewayContact) ID() string   { return c.p.ID }
func (c *gatewayContact) Name() string { return c.p.Name }

type gatewayRoom struct{ r roomInfo }

func (r *gatewayRoom) ID() string    { return r.r.ID }
func (r *gatewayRoom) Topic() string { return r.r.Topic }

// gatewayFileBox fetches attachment bytes lazily from the gateway's file
// endpoint when the pipeline asks for them.
type gatewayFileBox struct {
	info   fileInfo
	client *http.Client
	token  string
}

func (b *gatewayFileBox) Name() string      { return b.info.Name }
func (b *gatewayFileBox) MediaType() string { return b.info.MediaType }

func (b *gatewayFileBox) Bytes(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.info.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build file request: %w", err)
	}
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch file from gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway file fetch: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file payload: %w", err)
	}
	if len(data) > maxPayloadBytes {
		return nil, errors.New("file payload exceeds size limit")
	}
	return data, nil
}
