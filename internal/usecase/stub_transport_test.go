package usecase

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
	"marketchat/pkg/errors"
)

// stubChat is a scriptable in-memory ChatTransport. Each hook defaults to a
// not-found answer; tests install only what they need. Counters track how
// often the network was reached.
type stubChat struct {
	listThreadsFn   func(ctx context.Context, query transport.ThreadQuery) ([]*entity.Thread, error)
	createThreadFn  func(ctx context.Context, input transport.CreateThreadInput) (*entity.Thread, error)
	getThreadFn     func(ctx context.Context, threadID string) (*entity.Thread, error)
	listMessagesFn  func(ctx context.Context, input transport.ListMessagesInput) (*transport.MessagePage, error)
	sendMessageFn   func(ctx context.Context, input transport.SendMessageInput) (*entity.Message, error)
	markReadFn      func(ctx context.Context, threadID, messageID string) (*entity.Thread, error)
	archiveFn       func(ctx context.Context, threadID string) (*entity.Thread, error)
	unarchiveFn     func(ctx context.Context, threadID string) (*entity.Thread, error)
	deleteThreadFn  func(ctx context.Context, threadID string) error
	checkListingsFn func(ctx context.Context, listingIDs []string) (map[string]entity.Availability, error)

	listThreadCalls  atomic.Int32
	listMessageCalls atomic.Int32
	sendCalls        atomic.Int32
	createCalls      atomic.Int32
	markReadCalls    atomic.Int32
}

func (s *stubChat) ListThreads(ctx context.Context, query transport.ThreadQuery) ([]*entity.Thread, error) {
	s.listThreadCalls.Add(1)
	if s.listThreadsFn == nil {
		return nil, nil
	}
	return s.listThreadsFn(ctx, query)
}

func (s *stubChat) CreateThread(ctx context.Context, input transport.CreateThreadInput) (*entity.Thread, error) {
	s.createCalls.Add(1)
	if s.createThreadFn == nil {
		return nil, errors.Internal("create not scripted", nil)
	}
	return s.createThreadFn(ctx, input)
}

func (s *stubChat) GetThread(ctx context.Context, threadID string) (*entity.Thread, error) {
	if s.getThreadFn == nil {
		return nil, errors.NotFound("Thread", nil)
	}
	return s.getThreadFn(ctx, threadID)
}

func (s *stubChat) ListMessages(ctx context.Context, input transport.ListMessagesInput) (*transport.MessagePage, error) {
	s.listMessageCalls.Add(1)
	if s.listMessagesFn == nil {
		return &transport.MessagePage{}, nil
	}
	return s.listMessagesFn(ctx, input)
}

func (s *stubChat) SendMessage(ctx context.Context, input transport.SendMessageInput) (*entity.Message, error) {
	s.sendCalls.Add(1)
	if s.sendMessageFn == nil {
		return nil, errors.Internal("send not scripted", nil)
	}
	return s.sendMessageFn(ctx, input)
}

func (s *stubChat) MarkRead(ctx context.Context, threadID, messageID string) (*entity.Thread, error) {
	s.markReadCalls.Add(1)
	if s.markReadFn == nil {
		return &entity.Thread{ID: threadID, LastReadMessageID: messageID}, nil
	}
	return s.markReadFn(ctx, threadID, messageID)
}

func (s *stubChat) Archive(ctx context.Context, threadID string) (*entity.Thread, error) {
	if s.archiveFn == nil {
		return &entity.Thread{ID: threadID, Status: entity.ThreadArchived, Archived: true}, nil
	}
	return s.archiveFn(ctx, threadID)
}

func (s *stubChat) Unarchive(ctx context.Context, threadID string) (*entity.Thread, error) {
	if s.unarchiveFn == nil {
		return &entity.Thread{ID: threadID, Status: entity.ThreadActive}, nil
	}
	return s.unarchiveFn(ctx, threadID)
}

func (s *stubChat) DeleteThread(ctx context.Context, threadID string) error {
	if s.deleteThreadFn == nil {
		return nil
	}
	return s.deleteThreadFn(ctx, threadID)
}

func (s *stubChat) CheckListings(ctx context.Context, listingIDs []string) (map[string]entity.Availability, error) {
	if s.checkListingsFn == nil {
		return map[string]entity.Availability{}, nil
	}
	return s.checkListingsFn(ctx, listingIDs)
}

// stubUploader records uploads and can fail specific file names.
type stubUploader struct {
	calls    atomic.Int32
	failFile string
}

func (u *stubUploader) Upload(ctx context.Context, threadID, name, contentType string, file io.Reader, size int64) (*entity.Attachment, error) {
	u.calls.Add(1)
	if name == u.failFile {
		return nil, errors.Internal("upload rejected", nil)
	}
	return &entity.Attachment{
		Type:        entity.AttachmentFile,
		URL:         "https://cdn.example/" + threadID + "/" + name,
		Name:        name,
		Size:        size,
		ContentType: contentType,
	}, nil
}

// makeMessages builds n ascending messages for a thread, one minute apart.
func makeMessages(threadID string, n int) []*entity.Message {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := make([]*entity.Message, n)
	for i := 0; i < n; i++ {
		out[i] = &entity.Message{
			ID:        fmt.Sprintf("%s-m%03d", threadID, i+1),
			ThreadID:  threadID,
			SenderID:  "u-1",
			Body:      fmt.Sprintf("message %d", i+1),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

// pagedHistory serves makeMessages-style history the way the API does:
// newest page first, older pages via the before bound.
func pagedHistory(all []*entity.Message) func(ctx context.Context, input transport.ListMessagesInput) (*transport.MessagePage, error) {
	return func(ctx context.Context, input transport.ListMessagesInput) (*transport.MessagePage, error) {
		eligible := all
		if input.Before != nil {
			eligible = nil
			for _, m := range all {
				if m.CreatedAt.Before(*input.Before) {
					eligible = append(eligible, m)
				}
			}
		}

		limit := input.Limit
		if limit <= 0 || limit > len(eligible) {
			limit = len(eligible)
		}
		page := eligible[len(eligible)-limit:]
		return &transport.MessagePage{
			Messages: page,
			HasMore:  len(eligible) > limit,
		}, nil
	}
}
