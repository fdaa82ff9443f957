package chat

import "time"

// Thread is the server-derived projection of one room: the client never
// constructs or mutates one, it only replaces the whole directory with
// whatever the server returns.
type Thread struct {
	Room              string     `json:"room"`
	TotalMessages     int        `json:"total_messages"`
	TotalParticipants int        `json:"total_participants"`
	LastMessageID     int64      `json:"last_message_id"`
	LastSenderID      *string    `json:"last_sender_id"`
	LastSenderName    *string    `json:"last_sender_name"`
	LastMessageText   *string    `json:"last_message_text"`
	LastMessageAt     *time.Time `json:"last_message_at"`
}

const (
	AttachmentImage    = "image"
	AttachmentDocument = "document"
)

// Message is immutable once created; the only mutation the server supports
// is a hard delete. A message carries at least one of text or attachment.
type Message struct {
	ID         int64     `json:"id"`
	Room       string    `json:"room"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_nama"`
	Role       string    `json:"role"`
	Text       string    `json:"message"`
	CreatedAt  time.Time `json:"created_at"`

	ReplyTo         *int64  `json:"reply_to"`
	ReplySenderName *string `json:"reply_sender_nama"`
	ReplyText       *string `json:"reply_message"`

	// Attachment is a relative path under the shared storage prefix;
	// AttachmentType is "image" or "document".
	Attachment     *string `json:"attachment"`
	AttachmentType *string `json:"attachment_type"`
}

// HasAttachment reports whether the message references a stored file.
func (m Message) HasAttachment() bool {
	return m.Attachment != nil && *m.Attachment != ""
}

// Participant summarizes an actor who has sent at least one message into a
// thread. Recomputed server-side from message history.
type Participant struct {
	SenderID     string     `json:"sender_id"`
	SenderName   string     `json:"sender_nama"`
	MessageCount int        `json:"count"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

// DirectorySummary aggregates the whole chat surface.
type DirectorySummary struct {
	TotalMessages int `json:"total_messages"`
	TotalThreads  int `json:"total_threads"`
	TotalSenders  int `json:"total_senders"`
}

// ThreadSummary aggregates one room.
type ThreadSummary struct {
	TotalMessages     int        `json:"total_messages"`
	TotalParticipants int        `json:"total_participants"`
	FirstMessageAt    *time.Time `json:"first_message_at"`
	LastMessageAt     *time.Time `json:"last_message_at"`
}

type PageMeta struct {
	Total int `json:"total"`
}

type directoryResponse struct {
	Data    []Thread          `json:"data"`
	Summary *DirectorySummary `json:"summary"`
	Meta    *PageMeta         `json:"meta"`
}

type threadResponse struct {
	Data         []Message      `json:"data"`
	Summary      *ThreadSummary `json:"summary"`
	Participants []Participant  `json:"participants"`
}
