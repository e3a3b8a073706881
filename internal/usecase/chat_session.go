package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// UploadFile is one file handed to attachment staging.
type UploadFile struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// UploadOutcome reports one file's staging result. Outcomes are independent:
// one bad file never blocks the others.
type UploadOutcome struct {
	File       string
	Attachment *entity.Attachment
	Err        error
}

// composeState is the ephemeral per-thread compose box: draft text plus
// staged attachments. Keyed by thread id so switching threads never leaks an
// unsent draft across conversations.
type composeState struct {
	draft   string
	pending []entity.PendingAttachment
}

// ChatSession binds one active (listing, thread) pair to the message window,
// send pipeline and thread actions, and exposes the state a presentation
// layer renders.
type ChatSession struct {
	chat      transport.ChatTransport
	uploader  transport.Uploader
	directory *ThreadDirectory
	window    *MessageWindow
	pipeline  *SendPipeline
	actions   *ThreadActions
	pageSize  int

	mu              sync.Mutex
	activeThreadID  string
	activeListingID string
	compose         map[string]*composeState
	lastReadFired   string
	lastCount       int
	scrollVersion   int
	fetchErr        error
}

func NewChatSession(chat transport.ChatTransport, uploader transport.Uploader, directory *ThreadDirectory, pageSize int) *ChatSession {
	window := NewMessageWindow(chat)
	return &ChatSession{
		chat:      chat,
		uploader:  uploader,
		directory: directory,
		window:    window,
		pipeline:  NewSendPipeline(chat, window, directory),
		actions:   NewThreadActions(chat),
		pageSize:  pageSize,
		compose:   make(map[string]*composeState),
	}
}

func (s *ChatSession) Window() *MessageWindow  { return s.window }
func (s *ChatSession) Pipeline() *SendPipeline { return s.pipeline }
func (s *ChatSession) Actions() *ThreadActions { return s.actions }

// Open switches the session to a (listing, thread) pair. threadID may be
// empty when the viewer opens a listing with no prior conversation. The
// window is fully reset before the new thread's data arrives and read
// tracking starts over.
func (s *ChatSession) Open(ctx context.Context, listingID, threadID string) error {
	s.mu.Lock()
	s.activeListingID = listingID
	s.activeThreadID = threadID
	s.lastReadFired = ""
	s.lastCount = 0
	s.fetchErr = nil
	s.mu.Unlock()

	s.pipeline.ResetErrors()

	if threadID != "" && s.directory.Get(threadID) == nil {
		thread, err := s.chat.GetThread(ctx, threadID)
		if err != nil {
			logger.Error("ChatSession: fetch thread %s failed: %v", threadID, err)
			s.mu.Lock()
			s.fetchErr = err
			s.mu.Unlock()
		} else {
			s.directory.Patch(thread)
		}
	}

	if err := s.window.LoadInitial(ctx, threadID, s.pageSize); err != nil {
		return err
	}
	s.afterWindowChange(ctx)
	return nil
}

// Close detaches the session from its thread without touching server state.
func (s *ChatSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeThreadID = ""
	s.activeListingID = ""
	s.lastReadFired = ""
	s.lastCount = 0
	s.fetchErr = nil
}

func (s *ChatSession) ActiveThreadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeThreadID
}

func (s *ChatSession) ActiveListingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeListingID
}

// Draft returns the compose text for the active conversation.
func (s *ChatSession) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.composeLocked().draft
}

func (s *ChatSession) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composeLocked().draft = text
}

// Pending returns the attachments staged for the active conversation.
func (s *ChatSession) Pending() []entity.PendingAttachment {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.composeLocked().pending
	out := make([]entity.PendingAttachment, len(pending))
	copy(out, pending)
	return out
}

// RemovePending drops one staged attachment before send. Nothing references
// the stored file yet, so no server call is made.
func (s *ChatSession) RemovePending(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs := s.composeLocked()
	if i < 0 || i >= len(cs.pending) {
		return
	}
	cs.pending = append(cs.pending[:i], cs.pending[i+1:]...)
}

// Attach uploads files one at a time and stages the successes. Attachments
// require an existing thread: file storage is associated with a thread id,
// so the first message must be sent before anything can be attached.
func (s *ChatSession) Attach(ctx context.Context, files []UploadFile) ([]UploadOutcome, error) {
	s.mu.Lock()
	threadID := s.activeThreadID
	s.mu.Unlock()

	if threadID == "" {
		return nil, errors.Precondition("Send a message to start the conversation before attaching files")
	}

	outcomes := make([]UploadOutcome, 0, len(files))
	for _, f := range files {
		att, err := s.uploader.Upload(ctx, threadID, f.Name, f.ContentType, f.Reader, f.Size)
		outcome := UploadOutcome{File: f.Name, Attachment: att, Err: err}
		outcomes = append(outcomes, outcome)
		if err != nil {
			logger.Warn("ChatSession: upload of %s failed: %v", f.Name, err)
			continue
		}

		s.mu.Lock()
		cs := s.composeLocked()
		cs.pending = append(cs.pending, entity.PendingAttachment{
			Attachment: *att,
			StagedAt:   time.Now(),
		})
		s.mu.Unlock()
	}
	return outcomes, nil
}

// Submit sends the active conversation's draft and staged attachments. A
// blank draft with nothing staged is inert. Draft and staged attachments are
// cleared only after the server confirms; uploaded attachments survive a
// failed send so a retry needs no re-upload.
func (s *ChatSession) Submit(ctx context.Context) error {
	s.mu.Lock()
	threadID := s.activeThreadID
	listingID := s.activeListingID
	key := s.composeKeyLocked()
	cs := s.composeLocked()
	draft := cs.draft
	attachments := make([]entity.Attachment, len(cs.pending))
	for i, p := range cs.pending {
		attachments[i] = p.Attachment
	}
	s.mu.Unlock()

	if draft == "" && len(attachments) == 0 {
		return nil
	}

	thread, _, err := s.pipeline.Send(ctx, threadID, listingID, draft, attachments)
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.compose, key)
	if thread != nil {
		s.activeThreadID = thread.ID
		s.lastReadFired = ""
	}
	s.mu.Unlock()

	if thread != nil {
		// First message created the thread; its initial exchange
		// populates the window on this load.
		if err := s.window.LoadInitial(ctx, thread.ID, s.pageSize); err != nil {
			return nil
		}
	}

	s.afterWindowChange(ctx)
	return nil
}

// FetchOlder pages the window backward.
func (s *ChatSession) FetchOlder(ctx context.Context) error {
	return s.window.FetchOlder(ctx)
}

// Ingest appends an externally observed message (a reload or poll result)
// and runs the same read-receipt/scroll bookkeeping as a local send.
func (s *ChatSession) Ingest(ctx context.Context, msg *entity.Message) {
	s.window.Append(msg)
	s.afterWindowChange(ctx)
}

// Archive archives the active thread and patches the directory in place.
func (s *ChatSession) Archive(ctx context.Context) error {
	thread, err := s.actions.Archive(ctx, s.ActiveThreadID())
	if err != nil {
		return err
	}
	s.directory.Patch(thread)
	return nil
}

func (s *ChatSession) Unarchive(ctx context.Context) error {
	thread, err := s.actions.Unarchive(ctx, s.ActiveThreadID())
	if err != nil {
		return err
	}
	s.directory.Patch(thread)
	return nil
}

// Delete removes the active thread, drops it from the directory, evicts its
// compose state and clears it as current.
func (s *ChatSession) Delete(ctx context.Context) error {
	threadID := s.ActiveThreadID()
	if err := s.actions.Delete(ctx, threadID); err != nil {
		return err
	}

	s.directory.Remove(threadID)

	s.mu.Lock()
	delete(s.compose, threadID)
	if s.activeThreadID == threadID {
		s.activeThreadID = ""
		s.lastReadFired = ""
		s.lastCount = 0
	}
	s.mu.Unlock()

	return s.window.LoadInitial(ctx, "", s.pageSize)
}

// ScrollVersion increments whenever the window's message count changes; the
// presentation layer scrolls to bottom when it observes a new version.
func (s *ChatSession) ScrollVersion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrollVersion
}

// Err merges the session's error surfaces into the single message the UI
// shows: fetch error, then thread-creation error, then send error, then
// message-list error. First non-nil wins.
func (s *ChatSession) Err() error {
	s.mu.Lock()
	fetchErr := s.fetchErr
	s.mu.Unlock()

	if fetchErr != nil {
		return fetchErr
	}
	if err := s.pipeline.CreateErr(); err != nil {
		return err
	}
	if err := s.pipeline.SendErr(); err != nil {
		return err
	}
	return s.window.Err()
}

// afterWindowChange runs the bookkeeping tied to window contents: the
// scroll-to-bottom intent on count changes, and a mark-read for the newest
// message, fired at most once per unique last-message id.
func (s *ChatSession) afterWindowChange(ctx context.Context) {
	count := s.window.Len()
	last := s.window.Last()

	s.mu.Lock()
	if count != s.lastCount {
		s.lastCount = count
		s.scrollVersion++
	}

	threadID := s.activeThreadID
	var fireID string
	if last != nil && threadID != "" && last.ID != s.lastReadFired {
		s.lastReadFired = last.ID
		fireID = last.ID
	}
	s.mu.Unlock()

	if fireID == "" {
		return
	}

	thread, err := s.actions.MarkRead(ctx, threadID, fireID)
	if err != nil {
		logger.Warn("ChatSession: mark read failed for thread %s: %v", threadID, err)
		return
	}
	s.directory.Patch(thread)
}

func (s *ChatSession) composeKeyLocked() string {
	if s.activeThreadID != "" {
		return s.activeThreadID
	}
	return "listing:" + s.activeListingID
}

func (s *ChatSession) composeLocked() *composeState {
	key := s.composeKeyLocked()
	cs, ok := s.compose[key]
	if !ok {
		cs = &composeState{}
		s.compose[key] = cs
	}
	return cs
}
