package transport

import (
	"context"
	"fmt"
	"io"
	"time"

	"marketchat/internal/domain/entity"
)

// ThreadQuery filters the thread list for the current viewer.
type ThreadQuery struct {
	Role       entity.Role
	Archived   bool
	UnreadOnly bool
	MyAdsOnly  bool
}

// Signature identifies a query so repeated loads with the same filter can be
// suppressed and stale in-flight loads discarded.
func (q ThreadQuery) Signature() string {
	return fmt.Sprintf("role=%s|archived=%t|unread=%t|myads=%t", q.Role, q.Archived, q.UnreadOnly, q.MyAdsOnly)
}

// ListMessagesInput pages a thread's history. Before/After bound by message
// creation time; Limit caps the page size.
type ListMessagesInput struct {
	ThreadID string
	Before   *time.Time
	After    *time.Time
	Limit    int
}

// MessagePage is one page of history, ordered oldest first.
type MessagePage struct {
	Messages []*entity.Message
	HasMore  bool
}

type CreateThreadInput struct {
	ListingID       string
	Message         string
	Attachments     []entity.Attachment
	ClientMessageID string
}

type SendMessageInput struct {
	ThreadID        string
	Body            string
	Attachments     []entity.Attachment
	Metadata        map[string]interface{}
	ClientMessageID string
}

// ChatTransport is the authenticated request/response collaborator the chat
// core talks to. Implementations own retries, auth refresh and timeouts; the
// core only sees the resulting errors.
type ChatTransport interface {
	ListThreads(ctx context.Context, query ThreadQuery) ([]*entity.Thread, error)
	CreateThread(ctx context.Context, input CreateThreadInput) (*entity.Thread, error)
	GetThread(ctx context.Context, threadID string) (*entity.Thread, error)
	ListMessages(ctx context.Context, input ListMessagesInput) (*MessagePage, error)
	SendMessage(ctx context.Context, input SendMessageInput) (*entity.Message, error)
	MarkRead(ctx context.Context, threadID, messageID string) (*entity.Thread, error)
	Archive(ctx context.Context, threadID string) (*entity.Thread, error)
	Unarchive(ctx context.Context, threadID string) (*entity.Thread, error)
	DeleteThread(ctx context.Context, threadID string) error
	CheckListings(ctx context.Context, listingIDs []string) (map[string]entity.Availability, error)
}

// Uploader stores one file against a thread and returns its descriptor.
type Uploader interface {
	Upload(ctx context.Context, threadID, name, contentType string, file io.Reader, size int64) (*entity.Attachment, error)
}
