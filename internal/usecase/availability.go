package usecase

import (
	"context"
	"time"

	"marketchat/internal/domain/transport"
	"marketchat/pkg/logger"
)

// Reconciler refreshes the availability tags of listings referenced by open
// threads. Listings change hands independently of chat: a thread whose
// listing went away stays visible and sendable, just flagged. The check is
// advisory, so failures never block loading or sending.
type Reconciler struct {
	chat      transport.ChatTransport
	directory *ThreadDirectory
	interval  time.Duration
}

func NewReconciler(chat transport.ChatTransport, directory *ThreadDirectory, interval time.Duration) *Reconciler {
	return &Reconciler{
		chat:      chat,
		directory: directory,
		interval:  interval,
	}
}

// Reconcile bulk-checks every listing referenced by the directory and
// patches the snapshots. Errors are logged and swallowed.
func (r *Reconciler) Reconcile(ctx context.Context) {
	ids := r.directory.ListingIDs()
	if len(ids) == 0 {
		return
	}

	statuses, err := r.chat.CheckListings(ctx, ids)
	if err != nil {
		logger.LogReconcileError(len(ids), err)
		return
	}

	for listingID, tag := range statuses {
		r.directory.PatchAvailability(listingID, tag)
	}
}

// Run reconciles on a fixed cadence until the context is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.Reconcile(ctx)
		case <-ctx.Done():
			return
		}
	}
}
