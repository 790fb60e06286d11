// Package envelope assembles the canonical JSON records forwarded to the
// downstream collector.
package envelope

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vangitty/wechaty2/internal/attachment"
	"github.com/vangitty/wechaty2/internal/classify"
	"github.com/vangitty/wechaty2/internal/domain"
)

// EnsureMessageID returns id, or a generated replacement when the session
// delivered a message without one.
func EnsureMessageID(id string) string {
	if id == "" {
		return "generated-" + uuid.NewString()
	}
	return id
}

// Build assembles the message envelope for msg. att is nil for non-media
// messages. Callers must filter system/unknown/recalled types first; Build
// assumes the message is deliverable.
func Build(msg domain.Message, messageID, botID string, att *attachment.Payload) domain.MessageEnvelope {
	env := base(msg, messageID, botID)

	if att != nil {
		env.SubType = subTypeFor(att.MimeType)
		env.HasFile = true
		env.FileID = messageID
		env.FileName = att.CleanedName
		env.FileSize = int64(len(att.Data))
		env.MimeType = att.MimeType
		env.StorageURL = att.StorageURL
		return env
	}

	env.Text = msg.Text()

	if msg.Type() == domain.TypeText {
		env.SubType = "text"
		env.ExtractedText = env.Text
		// The collector keys some post-processing off a file name even
		// for plain text, so generate one.
		env.FileName = "message-" + messageID + ".txt"
		return env
	}

	// Location, url, app and the other unhandled categories pass through
	// with just their category and raw text.
	return env
}

// BuildFailure assembles the message envelope that reports a normalization
// or upload failure in place of the original content. The triggering event
// is reported, never silently dropped.
func BuildFailure(msg domain.Message, messageID, botID string, cause error) domain.MessageEnvelope {
	env := base(msg, messageID, botID)
	env.SubType = "error"
	env.ErrorMessage = "file processing failed: " + cause.Error()
	env.ErrorType = string(classify.Classify(cause))
	return env
}

// BuildError assembles the minimal error envelope used when a failure
// cannot be tied to message content (delivery failures, panics).
func BuildError(messageID, botID string, cause error) domain.ErrorEnvelope {
	if messageID == "" {
		messageID = "unknown"
	}
	return domain.ErrorEnvelope{
		Kind:         domain.KindError,
		ErrorMessage: cause.Error(),
		ErrorType:    string(classify.Classify(cause)),
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		MessageID:    messageID,
		BotID:        botID,
	}
}

// BuildSession assembles a login or logout envelope.
func BuildSession(kind, user, reason, botID string) domain.SessionEnvelope {
	return domain.SessionEnvelope{
		Kind:      kind,
		User:      user,
		Reason:    reason,
		BotID:     botID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// base populates the fields shared by all message envelopes. Every value
// that could be absent on the source event is coerced to "".
func base(msg domain.Message, messageID, botID string) domain.MessageEnvelope {
	var fromID, fromName string
	if talker := msg.Talker(); talker != nil {
		fromID = talker.ID()
		fromName = talker.Name()
	}

	var roomID, roomTopic string
	if room := msg.Room(); room != nil {
		roomID = room.ID()
		roomTopic = room.Topic()
	}

	ts := msg.Date()
	if ts.IsZero() {
		ts = time.Now()
	}
	stamp := ts.UTC().Format(time.RFC3339)

	return domain.MessageEnvelope{
		Kind:        domain.KindMessage,
		MessageID:   messageID,
		FromID:      fromID,
		FromName:    fromName,
		RoomID:      roomID,
		RoomTopic:   roomTopic,
		MessageType: msg.Type().Category(),
		BotID:       botID,
		Timestamp:   stamp,
		CreatedAt:   stamp,
	}
}

func subTypeFor(mimeType string) string {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "file"
	}
}
