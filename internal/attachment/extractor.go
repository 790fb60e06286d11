// Package attachment turns media-bearing chat messages into named byte
// buffers ready for blob storage.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/vangitty/wechaty2/internal/domain"
)

var (
	// ErrNotAttachment marks a message that carries no binary content.
	ErrNotAttachment = errors.New("message carries no attachment")
	// ErrEmptyPayload marks a file handle that resolved to zero bytes.
	ErrEmptyPayload = errors.New("empty file payload received")
)

// Payload is the extracted binary content of a message. It lives only for
// the duration of one pipeline pass and is never persisted as-is.
type Payload struct {
	Data         []byte
	DeclaredName string
	CleanedName  string
	MimeType     string
	StorageKey   string
	StorageURL   string // set after a successful upload
}

// Extractor resolves a message's file handle into a Payload.
type Extractor struct {
	// textFileQuirk additionally probes text-typed messages for a file
	// handle and treats them as attachments when one resolves. Off by
	// default; some session backends mislabel forwarded images as text.
	textFileQuirk bool
	logger        *slog.Logger
}

// Config configures an Extractor.
type Config struct {
	TextFileQuirk bool
	Logger        *slog.Logger
}

func NewExtractor(cfg Config) *Extractor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Extractor{textFileQuirk: cfg.TextFileQuirk, logger: cfg.Logger}
}

// Extract returns the attachment payload of msg, ErrNotAttachment when the
// message type carries none, or ErrEmptyPayload when the handle resolves to
// an empty buffer. messageID is the already-resolved envelope message ID and
// seeds fallback names and the storage key.
func (e *Extractor) Extract(ctx context.Context, msg domain.Message, messageID string) (*Payload, error) {
	mt := msg.Type()
	isMedia := mt.HasAttachment()
	if !isMedia && !(e.textFileQuirk && mt == domain.TypeText) {
		return nil, ErrNotAttachment
	}

	box, err := msg.ToFileBox()
	if err != nil || box == nil {
		if !isMedia {
			// Quirk probe on a text message found nothing: plain text.
			return nil, ErrNotAttachment
		}
		if err == nil {
			err = errors.New("session returned no file handle")
		}
		return nil, fmt.Errorf("resolve file handle: %w", err)
	}

	data, err := box.Bytes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch file payload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	name := box.Name()
	if name == "" {
		if mt == domain.TypeImage {
			name = "image-" + messageID + ".jpg"
		} else {
			name = "file-" + messageID
		}
	}

	mime := box.MediaType()
	if mime == "" {
		mime = MimeByName(name)
	}

	cleaned := CleanName(name)
	p := &Payload{
		Data:         data,
		DeclaredName: name,
		CleanedName:  cleaned,
		MimeType:     mime,
		StorageKey:   StorageKey(messageID, cleaned),
	}
	e.logger.Debug("attachment extracted",
		"message_id", messageID, "name", cleaned, "size", len(data), "mime", mime)
	return p, nil
}

var (
	keyPrefixPattern = regexp.MustCompile(`message-.*-`)
	unsafeRunes      = regexp.MustCompile(`[^a-zA-Z0-9.-]`)
)

// CleanName strips a previously prepended "message-<id>-" storage prefix and
// replaces every rune outside [A-Za-z0-9.-] with an underscore, so the name
// is safe as an object-store key segment.
func CleanName(name string) string {
	name = keyPrefixPattern.ReplaceAllString(name, "")
	return unsafeRunes.ReplaceAllString(name, "_")
}

// StorageKey builds the deterministic object key for a message attachment.
func StorageKey(messageID, cleanedName string) string {
	return "message-" + messageID + "-" + cleanedName
}

// mimeByExt covers the document types the collector knows how to post-process.
var mimeByExt = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"zip":  "application/zip",
	"rar":  "application/x-rar-compressed",
	"7z":   "application/x-7z-compressed",
}

// MimeByName guesses a content type from the file extension, falling back
// to application/octet-stream.
func MimeByName(name string) string {
	idx := strings.LastIndex(name, ".")
	if idx >= 0 {
		if mime, ok := mimeByExt[strings.ToLower(name[idx+1:])]; ok {
			return mime
		}
	}
	return "application/octet-stream"
}
