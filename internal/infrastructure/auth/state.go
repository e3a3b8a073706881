package auth

import (
	"context"
	"sync"

	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// Event describes an auth-state change delivered to subscribers.
type Event struct {
	SignedIn bool
	UserID   string
}

// RefreshFunc exchanges the current refresh token for a new access token.
type RefreshFunc func(ctx context.Context) (string, error)

// State is an injected auth-state handle with an explicit subscribe
// lifetime. Components that previously listened for a process-wide "auth
// changed" broadcast take a *State instead.
type State struct {
	mu      sync.RWMutex
	token   string
	userID  string
	refresh RefreshFunc
	subs    map[int]chan Event
	nextSub int
}

func NewState(token, userID string, refresh RefreshFunc) *State {
	return &State{
		token:   token,
		userID:  userID,
		refresh: refresh,
		subs:    make(map[int]chan Event),
	}
}

// Token returns the current access token. Satisfies the transport's
// TokenSource contract.
func (s *State) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", errors.Unauthorized("Not signed in", nil)
	}
	return s.token, nil
}

// Refresh obtains a fresh access token, stores it, and returns it. Called by
// the transport once per failed request.
func (s *State) Refresh(ctx context.Context) (string, error) {
	s.mu.RLock()
	refresh := s.refresh
	s.mu.RUnlock()

	if refresh == nil {
		return "", errors.Unauthorized("Session expired", nil)
	}

	token, err := refresh(ctx)
	if err != nil {
		return "", errors.Unauthorized("Session refresh failed", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	return token, nil
}

func (s *State) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

// SignIn installs a token for a user and notifies subscribers.
func (s *State) SignIn(token, userID string) {
	s.mu.Lock()
	s.token = token
	s.userID = userID
	s.mu.Unlock()

	s.publish(Event{SignedIn: true, UserID: userID})
}

// SignOut clears the session and notifies subscribers.
func (s *State) SignOut() {
	s.mu.Lock()
	s.token = ""
	s.userID = ""
	s.mu.Unlock()

	s.publish(Event{SignedIn: false})
}

// Subscribe registers a listener. The returned cancel func must be called to
// release the channel; events are dropped for slow subscribers rather than
// blocking the publisher.
func (s *State) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 4)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *State) publish(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			logger.Warn("Auth subscriber %d is not draining events, dropping", id)
		}
	}
}
