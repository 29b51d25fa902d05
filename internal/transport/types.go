package transport

import "context"

// ContentKind classifies announcement payloads.
type ContentKind string

const (
	KindText     ContentKind = "text"
	KindPhoto    ContentKind = "photo"
	KindDocument ContentKind = "document"
	KindPDF      ContentKind = "pdf"
	KindAudio    ContentKind = "audio"
	KindVideo    ContentKind = "video"
)

func (k ContentKind) Valid() bool {
	switch k {
	case KindText, KindPhoto, KindDocument, KindPDF, KindAudio, KindVideo:
		return true
	}
	return false
}

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	Media        *Media // nil for plain text messages
}

// Media describes an attachment on an inbound message.
type Media struct {
	Kind     ContentKind
	FileID   string
	FileName string
	MIME     string
	Caption  string
	GroupID  string // media-group (album) correlation id, empty if none
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard: rows of callback buttons.
type Keyboard [][]Button

// Outgoing is a content descriptor for one outbound send: kind plus payload
// plus optional caption/keyboard.
type Outgoing struct {
	Kind     ContentKind
	Text     string // message body for KindText
	Caption  string // media caption for the other kinds
	FileID   string
	Keyboard Keyboard
}

type BotCommand struct {
	Command     string
	Description string
}

// Adapter is the platform transport consumed by the core. Implementations
// deliver inbound updates on the channel passed to Start and expose a
// send primitive keyed by recipient.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendMessage(ctx context.Context, chatID int64, msg Outgoing) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string) error
	EditKeyboard(ctx context.Context, ref MessageRef, kb Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
	SetCommands(ctx context.Context, cmds []BotCommand) error
}
