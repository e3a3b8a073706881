package usecase

import (
	"context"
	"sync"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

type ActionKind string

const (
	ActionMarkRead  ActionKind = "mark_read"
	ActionArchive   ActionKind = "archive"
	ActionUnarchive ActionKind = "unarchive"
	ActionDelete    ActionKind = "delete"
)

// ThreadActions performs single-thread mutating actions with isolated
// loading/error state per action family. Every action requires a selected
// thread and fails fast before any network attempt without one.
type ThreadActions struct {
	chat transport.ChatTransport

	mu      sync.Mutex
	loading map[ActionKind]bool
	errs    map[ActionKind]error
}

func NewThreadActions(chat transport.ChatTransport) *ThreadActions {
	return &ThreadActions{
		chat:    chat,
		loading: make(map[ActionKind]bool),
		errs:    make(map[ActionKind]error),
	}
}

// MarkRead marks the thread read up to messageID (empty means "everything")
// and returns the updated thread for the caller to patch into the directory.
func (a *ThreadActions) MarkRead(ctx context.Context, threadID, messageID string) (*entity.Thread, error) {
	if err := a.begin(ActionMarkRead, threadID); err != nil {
		return nil, err
	}

	thread, err := a.chat.MarkRead(ctx, threadID, messageID)
	a.finish(ActionMarkRead, err)
	if err != nil {
		logger.Error("ThreadActions: mark read failed for thread %s: %v", threadID, err)
		return nil, err
	}
	return thread, nil
}

func (a *ThreadActions) Archive(ctx context.Context, threadID string) (*entity.Thread, error) {
	if err := a.begin(ActionArchive, threadID); err != nil {
		return nil, err
	}

	thread, err := a.chat.Archive(ctx, threadID)
	a.finish(ActionArchive, err)
	if err != nil {
		logger.Error("ThreadActions: archive failed for thread %s: %v", threadID, err)
		return nil, err
	}
	return thread, nil
}

func (a *ThreadActions) Unarchive(ctx context.Context, threadID string) (*entity.Thread, error) {
	if err := a.begin(ActionUnarchive, threadID); err != nil {
		return nil, err
	}

	thread, err := a.chat.Unarchive(ctx, threadID)
	a.finish(ActionUnarchive, err)
	if err != nil {
		logger.Error("ThreadActions: unarchive failed for thread %s: %v", threadID, err)
		return nil, err
	}
	return thread, nil
}

// Delete removes the thread on the server. The caller is responsible for
// dropping it from the directory and clearing it as current.
func (a *ThreadActions) Delete(ctx context.Context, threadID string) error {
	if err := a.begin(ActionDelete, threadID); err != nil {
		return err
	}

	err := a.chat.DeleteThread(ctx, threadID)
	a.finish(ActionDelete, err)
	if err != nil {
		logger.Error("ThreadActions: delete failed for thread %s: %v", threadID, err)
	}
	return err
}

// Loading reports whether an action of the given family is in flight; the
// triggering control stays disabled while true.
func (a *ThreadActions) Loading(kind ActionKind) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loading[kind]
}

func (a *ThreadActions) Err(kind ActionKind) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.errs[kind]
}

func (a *ThreadActions) begin(kind ActionKind, threadID string) error {
	if threadID == "" {
		return errors.Precondition("No thread selected")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.loading[kind] {
		return errors.Conflict("Action already in progress")
	}
	a.loading[kind] = true
	return nil
}

func (a *ThreadActions) finish(kind ActionKind, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loading[kind] = false
	a.errs[kind] = err
}
