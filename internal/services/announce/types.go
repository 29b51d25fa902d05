package announce

import "classbot/internal/transport"

// Record is one stored announcement. Keep it compact and schema-stable:
// the on-disk document is a JSON object keyed by Record.ID.
type Record struct {
	ID           string                `json:"id"`
	Timestamp    string                `json:"timestamp"` // RFC 3339, local clock
	Kind         transport.ContentKind `json:"type"`
	SenderID     int64                 `json:"sender_id"`
	MessageID    int                   `json:"message_id"`
	Content      string                `json:"content"`
	Caption      string                `json:"caption"`
	FileID       string                `json:"file_id"`
	FileName     string                `json:"file_name"`
	MediaGroupID string                `json:"media_group_id"`
}

// Draft carries caller-supplied fields for Create. Timestamp, truncation
// and defaults are applied by the manager.
type Draft struct {
	Kind         transport.ContentKind
	SenderID     int64
	MessageID    int
	Content      string
	Caption      string
	FileID       string
	FileName     string
	MediaGroupID string
}
