package entity

import "time"

type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
)

// Attachment is a stored file referenced by a message. Immutable once
// created; produced by the uploader before any message references it.
type Attachment struct {
	Type        AttachmentType `json:"type"`
	URL         string         `json:"url"`
	Name        string         `json:"name,omitempty"`
	Size        int64          `json:"size"`
	ContentType string         `json:"content_type"`
	Width       int            `json:"width,omitempty"`
	Height      int            `json:"height,omitempty"`
}

// PendingAttachment is an uploaded attachment staged locally against the
// next outgoing message. Client-side only, never persisted.
type PendingAttachment struct {
	Attachment Attachment
	StagedAt   time.Time
}

// Message invariant: non-empty Body or at least one attachment, never both
// empty.
type Message struct {
	ID          string                 `json:"id"`
	ThreadID    string                 `json:"thread_id"`
	SenderID    string                 `json:"sender_id"`
	SenderName  string                 `json:"sender_name,omitempty"`
	Body        string                 `json:"body"`
	Attachments []Attachment           `json:"attachments,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	ClientID    string                 `json:"client_id,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	EditedAt    *time.Time             `json:"edited_at,omitempty"`
	DeletedAt   *time.Time             `json:"deleted_at,omitempty"`
	Deleted     bool                   `json:"deleted,omitempty"`
}

// Empty reports whether the message violates the body-or-attachment
// invariant.
func (m *Message) Empty() bool {
	return m.Body == "" && len(m.Attachments) == 0
}
