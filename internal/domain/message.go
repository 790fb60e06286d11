package domain

import (
	"context"
	"time"
)

// MessageType is the numeric discriminator the chat session assigns to
// each message event.
type MessageType int

const (
	TypeUnknown     MessageType = -1
	TypeText        MessageType = 0
	TypeImage       MessageType = 1
	TypeAudio       MessageType = 2
	TypeVideo       MessageType = 3
	TypeAttachment  MessageType = 4
	TypeEmoticon    MessageType = 5
	TypeLocation    MessageType = 6
	TypeContactCard MessageType = 7
	TypeApp         MessageType = 8
	TypeMiniProgram MessageType = 9
	TypeTransfer    MessageType = 10
	TypeRedEnvelope MessageType = 11
	TypeRecalled    MessageType = 12
	TypeURL         MessageType = 13
	TypeChannel     MessageType = 14
	TypeSystem      MessageType = 51
)

// Category maps the protocol code to a readable category string.
// Codes outside the known set resolve to "system" so that new protocol
// codes get filtered instead of forwarded half-understood.
func (t MessageType) Category() string {
	switch t {
	case TypeText:
		return "text"
	case TypeImage:
		return "image"
	case TypeAudio:
		return "audio"
	case TypeVideo:
		return "video"
	case TypeAttachment:
		return "file"
	case TypeEmoticon:
		return "emoticon"
	case TypeLocation:
		return "location"
	case TypeContactCard:
		return "contact_card"
	case TypeApp:
		return "app"
	case TypeMiniProgram:
		return "mini_program"
	case TypeTransfer:
		return "transfer"
	case TypeRedEnvelope:
		return "red_envelope"
	case TypeRecalled:
		return "recalled"
	case TypeURL:
		return "url"
	case TypeChannel:
		return "channel"
	case TypeSystem:
		return "system"
	default:
		return "system"
	}
}

// Filtered reports whether messages of this type are dropped before
// normalization: system chatter, recalls, and anything unmapped.
func (t MessageType) Filtered() bool {
	switch t {
	case TypeUnknown, TypeRecalled, TypeSystem:
		return true
	default:
		return t.Category() == "system"
	}
}

// HasAttachment reports whether this type carries binary content.
func (t MessageType) HasAttachment() bool {
	switch t {
	case TypeImage, TypeAttachment, TypeVideo, TypeAudio:
		return true
	default:
		return false
	}
}

// Contact is a chat participant as reported by the session.
type Contact interface {
	ID() string
	Name() string
}

// Room is a group conversation. A nil Room means a direct conversation.
type Room interface {
	ID() string
	Topic() string
}

// FileBox is a handle to the binary payload of a media message. Bytes may
// involve network I/O against the session gateway.
type FileBox interface {
	Name() string
	MediaType() string
	Bytes(ctx context.Context) ([]byte, error)
}

// Message is a single inbound message event from the chat session.
// ToFileBox returns (nil, nil) when the message carries no file handle.
type Message interface {
	ID() string
	Type() MessageType
	Text() string
	Date() time.Time
	Talker() Contact
	Room() Room
	ToFileBox() (FileBox, error)
}
