package usecase

import (
	"context"
	"sync"
	"time"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
	"marketchat/pkg/logger"
)

// MessageWindow holds the loaded slice of one thread's history: oldest
// first, no duplicate ids, plus a "more history available" flag. It is owned
// by exactly one ChatSession and never shared between threads.
type MessageWindow struct {
	chat transport.ChatTransport

	mu       sync.Mutex
	threadID string
	pageSize int
	messages []*entity.Message
	byID     map[string]int
	byClient map[string]string
	hasMore  bool
	fetching bool
	gen      int
	err      error
}

func NewMessageWindow(chat transport.ChatTransport) *MessageWindow {
	return &MessageWindow{
		chat:     chat,
		byID:     make(map[string]int),
		byClient: make(map[string]string),
	}
}

// LoadInitial resets the window to the given thread and fetches its newest
// pageSize messages. An empty threadID just resets. A failed fetch leaves
// the window empty rather than retaining the previous thread's messages.
func (w *MessageWindow) LoadInitial(ctx context.Context, threadID string, pageSize int) error {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.threadID = threadID
	w.pageSize = pageSize
	w.reset()
	if threadID == "" {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	page, err := w.chat.ListMessages(ctx, transport.ListMessagesInput{
		ThreadID: threadID,
		Limit:    pageSize,
	})

	w.mu.Lock()
	defer w.mu.Unlock()

	if gen != w.gen {
		// The window moved to another thread while this load was in
		// flight; its result no longer belongs here.
		logger.Debug("MessageWindow: discarding stale load for thread %s", threadID)
		return nil
	}

	if err != nil {
		logger.Error("MessageWindow: initial load failed for thread %s: %v", threadID, err)
		w.reset()
		w.err = err
		return err
	}

	w.reset()
	for _, msg := range page.Messages {
		w.insertTail(msg)
	}
	w.hasMore = page.HasMore
	return nil
}

// FetchOlder extends the window backward with messages strictly older than
// the current oldest. Re-entrant calls while a fetch is in flight are
// dropped, never interleaved.
func (w *MessageWindow) FetchOlder(ctx context.Context) error {
	w.mu.Lock()
	if w.threadID == "" || len(w.messages) == 0 || !w.hasMore || w.fetching {
		w.mu.Unlock()
		return nil
	}
	w.fetching = true
	gen := w.gen
	threadID := w.threadID
	oldest := w.messages[0].CreatedAt
	limit := w.pageSize
	w.mu.Unlock()

	before := oldest
	page, err := w.chat.ListMessages(ctx, transport.ListMessagesInput{
		ThreadID: threadID,
		Before:   &before,
		Limit:    limit,
	})

	w.mu.Lock()
	defer w.mu.Unlock()
	w.fetching = false

	if gen != w.gen {
		return nil
	}

	if err != nil {
		logger.Error("MessageWindow: fetch older failed for thread %s: %v", threadID, err)
		w.err = err
		return err
	}

	w.prepend(page.Messages)
	w.hasMore = page.HasMore
	return nil
}

// Append inserts a message at the end of the window. Idempotent by id; a
// message carrying the ClientID of an already-present message is treated as
// the server echo of it and replaces it in place.
func (w *MessageWindow) Append(msg *entity.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.byID[msg.ID]; ok {
		return
	}
	if msg.ClientID != "" {
		if echoID, ok := w.byClient[msg.ClientID]; ok {
			if pos, ok := w.byID[echoID]; ok {
				delete(w.byID, echoID)
				w.messages[pos] = msg
				w.byID[msg.ID] = pos
				return
			}
		}
	}
	w.insertTail(msg)
}

// Update replaces an existing message in place (edit/delete markers). No-op
// when the id is not loaded.
func (w *MessageWindow) Update(msg *entity.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pos, ok := w.byID[msg.ID]
	if !ok {
		return
	}
	w.messages[pos] = msg
}

// Messages returns a copy of the window, oldest first.
func (w *MessageWindow) Messages() []*entity.Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]*entity.Message, len(w.messages))
	copy(out, w.messages)
	return out
}

// Last returns the newest loaded message, or nil for an empty window.
func (w *MessageWindow) Last() *entity.Message {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.messages) == 0 {
		return nil
	}
	return w.messages[len(w.messages)-1]
}

func (w *MessageWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

func (w *MessageWindow) HasMore() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hasMore
}

func (w *MessageWindow) ThreadID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.threadID
}

func (w *MessageWindow) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// OldestAt reports the creation time of the oldest loaded message.
func (w *MessageWindow) OldestAt() (time.Time, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.messages) == 0 {
		return time.Time{}, false
	}
	return w.messages[0].CreatedAt, true
}

func (w *MessageWindow) reset() {
	w.messages = nil
	w.byID = make(map[string]int)
	w.byClient = make(map[string]string)
	w.hasMore = false
	w.err = nil
}

func (w *MessageWindow) insertTail(msg *entity.Message) {
	w.byID[msg.ID] = len(w.messages)
	if msg.ClientID != "" {
		w.byClient[msg.ClientID] = msg.ID
	}
	w.messages = append(w.messages, msg)
}

func (w *MessageWindow) prepend(older []*entity.Message) {
	fresh := make([]*entity.Message, 0, len(older))
	for _, msg := range older {
		if _, ok := w.byID[msg.ID]; ok {
			continue
		}
		fresh = append(fresh, msg)
	}
	if len(fresh) == 0 {
		return
	}

	merged := make([]*entity.Message, 0, len(fresh)+len(w.messages))
	merged = append(merged, fresh...)
	merged = append(merged, w.messages...)
	w.messages = merged

	w.byID = make(map[string]int, len(merged))
	for i, msg := range merged {
		w.byID[msg.ID] = i
		if msg.ClientID != "" {
			w.byClient[msg.ClientID] = msg.ID
		}
	}
}
