package envelope

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vangitty/wechaty2/internal/attachment"
	"github.com/vangitty/wechaty2/internal/domain"
)

type fakeContact struct{ id, name string }

func (c *fakeContact) ID() string   { return c.id }
func (c *fakeContact) Name() string { return c.name }

type fakeRoom struct{ id, topic string }

func (r *fakeRoom) ID() string    { return r.id }
func (r *fakeRoom) Topic() string { return r.topic }

type fakeMessage struct {
	id     string
	mtype  domain.MessageType
	text   string
	date   time.Time
	talker domain.Contact
	room   domain.Room
}

func (m *fakeMessage) ID() string                         { return m.id }
func (m *fakeMessage) Type() domain.MessageType           { return m.mtype }
func (m *fakeMessage) Text() string                       { return m.text }
func (m *fakeMessage) Date() time.Time                    { return m.date }
func (m *fakeMessage) Talker() domain.Contact             { return m.talker }
func (m *fakeMessage) Room() domain.Room                  { return m.room }
func (m *fakeMessage) ToFileBox() (domain.FileBox, error) { return nil, nil }

func TestEnsureMessageID(t *testing.T) {
	if got := EnsureMessageID("abc"); got != "abc" {
		t.Errorf("existing id changed: %q", got)
	}
	generated := EnsureMessageID("")
	if !strings.HasPrefix(generated, "generated-") || len(generated) <= len("generated-") {
		t.Errorf("unexpected generated id %q", generated)
	}
	if EnsureMessageID("") == generated {
		t.Error("generated ids should be unique")
	}
}

func TestBuild_TextMessage(t *testing.T) {
	when := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	msg := &fakeMessage{
		id:     "m1",
		mtype:  domain.TypeText,
		text:   "hello world",
		date:   when,
		talker: &fakeContact{id: "u1", name: "Alice"},
		room:   &fakeRoom{id: "r1", topic: "general"},
	}

	env := Build(msg, "m1", "bot-1", nil)

	if env.Kind != domain.KindMessage {
		t.Errorf("kind = %q", env.Kind)
	}
	if env.MessageType != "text" || env.SubType != "text" {
		t.Errorf("type = %q/%q", env.MessageType, env.SubType)
	}
	if env.Text != "hello world" || env.ExtractedText != "hello world" {
		t.Errorf("text = %q / extracted = %q", env.Text, env.ExtractedText)
	}
	if env.FromID != "u1" || env.FromName != "Alice" {
		t.Errorf("from = %q/%q", env.FromID, env.FromName)
	}
	if env.RoomID != "r1" || env.RoomTopic != "general" {
		t.Errorf("room = %q/%q", env.RoomID, env.RoomTopic)
	}
	if env.HasFile {
		t.Error("text message should not have a file")
	}
	if env.FileName != "message-m1.txt" {
		t.Errorf("fileName = %q", env.FileName)
	}
	if env.Timestamp != "2025-03-01T12:30:00Z" || env.CreatedAt != env.Timestamp {
		t.Errorf("timestamp = %q / createdAt = %q", env.Timestamp, env.CreatedAt)
	}
	if env.BotID != "bot-1" {
		t.Errorf("botId = %q", env.BotID)
	}
}

func TestBuild_DirectConversation_EmptyRoom(t *testing.T) {
	msg := &fakeMessage{id: "m2", mtype: domain.TypeText, date: time.Now()}
	env := Build(msg, "m2", "bot-1", nil)
	if env.RoomID != "" || env.RoomTopic != "" || env.FromID != "" || env.FromName != "" {
		t.Errorf("absent participants must coerce to empty strings: %+v", env)
	}
}

func TestBuild_Attachment(t *testing.T) {
	msg := &fakeMessage{
		id:    "m3",
		mtype: domain.TypeImage,
		date:  time.Now(),
	}
	att := &attachment.Payload{
		Data:        []byte{1, 2, 3, 4},
		CleanedName: "photo.jpg",
		MimeType:    "image/jpeg",
		StorageURL:  "http://minio:9000/chat-files/message-m3-photo.jpg",
	}

	env := Build(msg, "m3", "bot-1", att)

	if env.SubType != "image" {
		t.Errorf("subType = %q", env.SubType)
	}
	if !env.HasFile || env.FileID != "m3" || env.FileName != "photo.jpg" {
		t.Errorf("file fields wrong: %+v", env)
	}
	if env.FileSize != 4 {
		t.Errorf("fileSize = %d", env.FileSize)
	}
	if env.StorageURL != att.StorageURL {
		t.Errorf("storageUrl = %q", env.StorageURL)
	}
	if env.Text != "" || env.ExtractedText != "" {
		t.Errorf("attachment envelope should carry no text: %q/%q", env.Text, env.ExtractedText)
	}
}

func TestBuild_SubTypeFromMime(t *testing.T) {
	cases := []struct {
		mime, want string
	}{
		{"image/png", "image"},
		{"video/mp4", "video"},
		{"audio/ogg", "audio"},
		{"application/pdf", "file"},
		{"application/octet-stream", "file"},
	}
	msg := &fakeMessage{id: "m4", mtype: domain.TypeAttachment, date: time.Now()}
	for _, tc := range cases {
		env := Build(msg, "m4", "b", &attachment.Payload{Data: []byte("x"), MimeType: tc.mime})
		if env.SubType != tc.want {
			t.Errorf("subType for %q = %q, want %q", tc.mime, env.SubType, tc.want)
		}
	}
}

func TestBuild_OtherCategoryPassthrough(t *testing.T) {
	// Non-text, non-media categories carry only their category and raw
	// text; the text overlay (extractedText, synthetic .txt name) stays
	// reserved for plain text messages.
	for _, tc := range []struct {
		mtype domain.MessageType
		want  string
	}{
		{domain.TypeLocation, "location"},
		{domain.TypeURL, "url"},
		{domain.TypeApp, "app"},
		{domain.TypeMiniProgram, "mini_program"},
		{domain.TypeEmoticon, "emoticon"},
	} {
		msg := &fakeMessage{id: "m5", mtype: tc.mtype, text: "somewhere", date: time.Now()}
		env := Build(msg, "m5", "b", nil)
		if env.MessageType != tc.want {
			t.Errorf("type %d: messageType = %q", tc.mtype, env.MessageType)
		}
		if env.Text != "somewhere" {
			t.Errorf("type %d: text = %q", tc.mtype, env.Text)
		}
		if env.SubType != "" {
			t.Errorf("type %d: subType = %q, want empty", tc.mtype, env.SubType)
		}
		if env.ExtractedText != "" {
			t.Errorf("type %d: extractedText = %q, want empty", tc.mtype, env.ExtractedText)
		}
		if env.FileName != "" {
			t.Errorf("type %d: fileName = %q, want empty", tc.mtype, env.FileName)
		}
		if env.HasFile {
			t.Errorf("type %d: hasFile set without attachment", tc.mtype)
		}
	}
}

func TestBuildFailure(t *testing.T) {
	msg := &fakeMessage{id: "m6", mtype: domain.TypeImage, date: time.Now()}
	env := BuildFailure(msg, "m6", "bot-1", errors.New("empty file payload received"))

	if env.Kind != domain.KindMessage {
		t.Errorf("kind = %q", env.Kind)
	}
	if env.SubType != "error" {
		t.Errorf("subType = %q", env.SubType)
	}
	if env.ErrorType != "PROCESSING" {
		t.Errorf("errorType = %q", env.ErrorType)
	}
	if !strings.Contains(env.ErrorMessage, "empty file payload") {
		t.Errorf("errorMessage = %q", env.ErrorMessage)
	}
}

func TestBuildError(t *testing.T) {
	env := BuildError("", "bot-1", errors.New("connection lost"))
	if env.Kind != domain.KindError {
		t.Errorf("kind = %q", env.Kind)
	}
	if env.MessageID != "unknown" {
		t.Errorf("messageId = %q", env.MessageID)
	}
	if env.ErrorType != "NETWORK" {
		t.Errorf("errorType = %q", env.ErrorType)
	}
	if env.Timestamp == "" {
		t.Error("timestamp missing")
	}
}

func TestBuildSession(t *testing.T) {
	env := BuildSession(domain.KindLogout, "alice", "kicked", "bot-1")
	if env.Kind != domain.KindLogout || env.User != "alice" || env.Reason != "kicked" {
		t.Errorf("unexpected envelope %+v", env)
	}
	if env.Timestamp == "" {
		t.Error("timestamp missing")
	}
}
