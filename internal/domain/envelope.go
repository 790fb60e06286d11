package domain

// Envelope kinds accepted by the downstream collector.
const (
	KindLogin   = "login"
	KindLogout  = "logout"
	KindMessage = "message"
	KindError   = "error"
)

// MessageEnvelope is the canonical record forwarded to the collector for a
// single chat message. The wire contract forbids null values: every string
// field defaults to "" so a half-populated source event still serializes
// cleanly.
type MessageEnvelope struct {
	Kind          string `json:"kind"`
	MessageID     string `json:"messageId"`
	FromID        string `json:"fromId"`
	FromName      string `json:"fromName"`
	RoomID        string `json:"roomId"`
	RoomTopic     string `json:"roomTopic"`
	MessageType   string `json:"messageType"`
	SubType       string `json:"subType"`
	Text          string `json:"text"`
	ExtractedText string `json:"extractedText"`
	HasFile       bool   `json:"hasFile"`
	FileID        string `json:"fileId"`
	FileName      string `json:"fileName"`
	FileSize      int64  `json:"fileSize"`
	MimeType      string `json:"mimeType"`
	StorageURL    string `json:"storageUrl"`
	BotID         string `json:"botId"`
	Timestamp     string `json:"timestamp"`
	CreatedAt     string `json:"createdAt"`

	// Populated only when normalization of the message itself failed and
	// the envelope reports that failure in place of the original content.
	ErrorMessage string `json:"errorMessage,omitempty"`
	ErrorType    string `json:"errorType,omitempty"`
}

// ErrorEnvelope reports a pipeline failure that could not be tied to a
// normalized message envelope.
type ErrorEnvelope struct {
	Kind         string `json:"kind"`
	ErrorMessage string `json:"errorMessage"`
	ErrorType    string `json:"errorType"`
	Timestamp    string `json:"timestamp"`
	MessageID    string `json:"messageId"`
	BotID        string `json:"botId"`
}

// SessionEnvelope reports session lifecycle changes (login, logout).
type SessionEnvelope struct {
	Kind      string `json:"kind"`
	User      string `json:"user"`
	Reason    string `json:"reason"`
	BotID     string `json:"botId"`
	Timestamp string `json:"timestamp"`
}
