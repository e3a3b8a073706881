package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

const attachmentPreview = "[attachment]"

// SendPipeline delivers a new message to a thread, creating the thread first
// when none exists yet. Errors are retained as pipeline state so the compose
// box can redisplay the failed draft; they are never thrown past this
// boundary.
type SendPipeline struct {
	chat      transport.ChatTransport
	window    *MessageWindow
	directory *ThreadDirectory

	mu        sync.Mutex
	sending   bool
	sendErr   error
	createErr error
}

func NewSendPipeline(chat transport.ChatTransport, window *MessageWindow, directory *ThreadDirectory) *SendPipeline {
	return &SendPipeline{
		chat:      chat,
		window:    window,
		directory: directory,
	}
}

// Send submits body+attachments to threadID, or creates a thread against
// listingID when threadID is empty. Returns the created thread (creation
// path) or the confirmed message (send path).
//
// Thread creation always carries an initial text message: attachments cannot
// exist before the thread does.
func (p *SendPipeline) Send(ctx context.Context, threadID, listingID, body string, attachments []entity.Attachment) (*entity.Thread, *entity.Message, error) {
	if threadID == "" {
		if body == "" {
			return nil, nil, errors.Precondition("A new conversation needs a text message")
		}
		if listingID == "" {
			return nil, nil, errors.Precondition("No listing selected")
		}
	} else if body == "" && len(attachments) == 0 {
		return nil, nil, errors.Precondition("Message is empty")
	}

	p.mu.Lock()
	if p.sending {
		p.mu.Unlock()
		return nil, nil, errors.Conflict("A send is already in progress")
	}
	p.sending = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.sending = false
		p.mu.Unlock()
	}()

	if threadID == "" {
		return p.createThread(ctx, listingID, body)
	}
	return p.sendMessage(ctx, threadID, body, attachments)
}

func (p *SendPipeline) createThread(ctx context.Context, listingID, body string) (*entity.Thread, *entity.Message, error) {
	thread, err := p.chat.CreateThread(ctx, transport.CreateThreadInput{
		ListingID:       listingID,
		Message:         body,
		ClientMessageID: uuid.New().String(),
	})
	if err != nil {
		logger.Error("SendPipeline: thread creation failed for listing %s: %v", listingID, err)
		p.mu.Lock()
		p.createErr = err
		p.mu.Unlock()
		return nil, nil, err
	}

	p.mu.Lock()
	p.createErr = nil
	p.mu.Unlock()

	p.directory.Patch(thread)
	return thread, nil, nil
}

func (p *SendPipeline) sendMessage(ctx context.Context, threadID, body string, attachments []entity.Attachment) (*entity.Thread, *entity.Message, error) {
	msg, err := p.chat.SendMessage(ctx, transport.SendMessageInput{
		ThreadID:        threadID,
		Body:            body,
		Attachments:     attachments,
		ClientMessageID: uuid.New().String(),
	})
	if err != nil {
		logger.Error("SendPipeline: send failed for thread %s: %v", threadID, err)
		p.mu.Lock()
		p.sendErr = err
		p.mu.Unlock()
		return nil, nil, err
	}

	p.mu.Lock()
	p.sendErr = nil
	p.mu.Unlock()

	p.window.Append(msg)
	p.patchThreadPreview(threadID, body, msg)
	return nil, msg, nil
}

// patchThreadPreview reflects a successful send on the directory record:
// preview, last-message time, and a zeroed unread count for the sender's
// view.
func (p *SendPipeline) patchThreadPreview(threadID, body string, msg *entity.Message) {
	thread := p.directory.Get(threadID)
	if thread == nil {
		return
	}

	patched := *thread
	patched.LastMessagePreview = body
	if body == "" {
		patched.LastMessagePreview = attachmentPreview
	}
	patched.LastMessageAt = msg.CreatedAt
	if patched.LastMessageAt.IsZero() {
		patched.LastMessageAt = time.Now()
	}
	patched.UnreadCount = 0
	p.directory.Patch(&patched)
}

// Sending reports whether a send or thread creation is in flight; the
// compose control stays disabled while true.
func (p *SendPipeline) Sending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sending
}

func (p *SendPipeline) SendErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sendErr
}

func (p *SendPipeline) CreateErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.createErr
}

// ResetErrors clears retained pipeline errors, used when switching threads.
func (p *SendPipeline) ResetErrors() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sendErr = nil
	p.createErr = nil
}
