package usecase

import (
	"context"
	"sync"
	"time"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
	"marketchat/internal/infrastructure/auth"
	"marketchat/pkg/logger"
)

// ThreadDirectory holds the filtered set of threads visible to the current
// viewer and applies point updates without refetching the full list.
type ThreadDirectory struct {
	chat transport.ChatTransport

	mu        sync.Mutex
	threads   []*entity.Thread
	lastQuery transport.ThreadQuery
	loadedSig string
	wantedSig string
	err       error

	refreshEvery time.Duration
}

func NewThreadDirectory(chat transport.ChatTransport, refreshEvery time.Duration) *ThreadDirectory {
	return &ThreadDirectory{
		chat:         chat,
		refreshEvery: refreshEvery,
	}
}

// Load fetches threads matching the query and replaces the directory's
// contents. A load whose filter signature matches the last successful load
// is suppressed. A result is applied only if its signature still matches the
// directory's wanted signature when it resolves, so a stale in-flight load
// cannot clobber a newer one.
func (d *ThreadDirectory) Load(ctx context.Context, query transport.ThreadQuery) error {
	sig := query.Signature()

	d.mu.Lock()
	if sig == d.loadedSig && d.err == nil {
		d.mu.Unlock()
		return nil
	}
	d.wantedSig = sig
	d.lastQuery = query
	d.mu.Unlock()

	return d.fetch(ctx, query, sig)
}

// Reload forces a refetch of the last query, bypassing signature
// suppression.
func (d *ThreadDirectory) Reload(ctx context.Context) error {
	d.mu.Lock()
	query := d.lastQuery
	sig := query.Signature()
	d.wantedSig = sig
	d.mu.Unlock()

	return d.fetch(ctx, query, sig)
}

func (d *ThreadDirectory) fetch(ctx context.Context, query transport.ThreadQuery, sig string) error {
	threads, err := d.chat.ListThreads(ctx, query)

	d.mu.Lock()
	defer d.mu.Unlock()

	if sig != d.wantedSig {
		logger.Debug("ThreadDirectory: discarding superseded load %q", sig)
		return nil
	}

	if err != nil {
		logger.Error("ThreadDirectory: load failed for %q: %v", sig, err)
		d.err = err
		return err
	}

	d.threads = threads
	d.loadedSig = sig
	d.err = nil
	return nil
}

// Patch replaces the thread with the same id in place, or inserts it at the
// front when it is not present yet (a thread just created by a first
// message).
func (d *ThreadDirectory) Patch(thread *entity.Thread) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, t := range d.threads {
		if t.ID == thread.ID {
			d.threads[i] = thread
			return
		}
	}
	d.threads = append([]*entity.Thread{thread}, d.threads...)
}

// Remove drops a thread by id.
func (d *ThreadDirectory) Remove(threadID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for i, t := range d.threads {
		if t.ID == threadID {
			d.threads = append(d.threads[:i], d.threads[i+1:]...)
			return
		}
	}
}

// PatchAvailability stamps a fresh availability tag on the listing snapshot
// of every thread referencing the listing.
func (d *ThreadDirectory) PatchAvailability(listingID string, tag entity.Availability) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.threads {
		if t.Listing.ID == listingID {
			t.Listing.Availability = tag
		}
	}
}

// Threads returns a copy of the current set.
func (d *ThreadDirectory) Threads() []*entity.Thread {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*entity.Thread, len(d.threads))
	copy(out, d.threads)
	return out
}

// Get returns the thread with the given id, or nil.
func (d *ThreadDirectory) Get(threadID string) *entity.Thread {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, t := range d.threads {
		if t.ID == threadID {
			return t
		}
	}
	return nil
}

// ListingIDs returns the distinct listing ids referenced by loaded threads.
func (d *ThreadDirectory) ListingIDs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	seen := make(map[string]struct{}, len(d.threads))
	var ids []string
	for _, t := range d.threads {
		if t.Listing.ID == "" {
			continue
		}
		if _, ok := seen[t.Listing.ID]; ok {
			continue
		}
		seen[t.Listing.ID] = struct{}{}
		ids = append(ids, t.Listing.ID)
	}
	return ids
}

func (d *ThreadDirectory) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

// Run reloads the directory on a fixed cadence until the context is
// cancelled. Disabled when no interval is configured.
func (d *ThreadDirectory) Run(ctx context.Context) {
	if d.refreshEvery <= 0 {
		return
	}

	ticker := time.NewTicker(d.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := d.Reload(ctx); err != nil {
				logger.Warn("ThreadDirectory: auto-refresh failed: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// WatchAuth clears the directory on sign-out so one viewer's threads never
// survive into another's session.
func (d *ThreadDirectory) WatchAuth(ctx context.Context, state *auth.State) {
	events, cancel := state.Subscribe()
	defer cancel()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if !ev.SignedIn {
				d.mu.Lock()
				d.threads = nil
				d.loadedSig = ""
				d.wantedSig = ""
				d.err = nil
				d.mu.Unlock()
				logger.Info("ThreadDirectory: cleared on sign-out")
			}
		case <-ctx.Done():
			return
		}
	}
}
