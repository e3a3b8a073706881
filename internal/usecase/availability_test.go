package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
	"marketchat/pkg/errors"
)

func TestReconcileFlagsDeletedListingButThreadStaysUsable(t *testing.T) {
	chat := &stubChat{
		checkListingsFn: func(ctx context.Context, listingIDs []string) (map[string]entity.Availability, error) {
			assert.ElementsMatch(t, []string{"l-1", "l-2"}, listingIDs)
			return map[string]entity.Availability{
				"l-1": entity.ListingDeleted,
				"l-2": entity.ListingAvailable,
			}, nil
		},
		sendMessageFn: func(ctx context.Context, input transport.SendMessageInput) (*entity.Message, error) {
			return &entity.Message{ID: "m-1", ThreadID: input.ThreadID, Body: input.Body, CreatedAt: time.Now()}, nil
		},
	}
	directory := NewThreadDirectory(chat, 0)
	directory.Patch(makeThread("t-1", "l-1"))
	directory.Patch(makeThread("t-2", "l-2"))
	r := NewReconciler(chat, directory, 0)

	r.Reconcile(context.Background())

	assert.Equal(t, entity.ListingDeleted, directory.Get("t-1").Listing.Availability)
	assert.Equal(t, entity.ListingAvailable, directory.Get("t-2").Listing.Availability)
	assert.Len(t, directory.Threads(), 2, "flagged threads stay in the directory")

	// Sending into a thread for a deleted listing still works.
	window := NewMessageWindow(chat)
	p := NewSendPipeline(chat, window, directory)
	_, msg, err := p.Send(context.Background(), "t-1", "", "still interested", nil)
	require.NoError(t, err)
	assert.Equal(t, "m-1", msg.ID)
}

func TestReconcileSwallowsCheckFailure(t *testing.T) {
	chat := &stubChat{
		checkListingsFn: func(ctx context.Context, listingIDs []string) (map[string]entity.Availability, error) {
			return nil, errors.Internal("listing service down", nil)
		},
	}
	directory := NewThreadDirectory(chat, 0)
	directory.Patch(makeThread("t-1", "l-1"))
	r := NewReconciler(chat, directory, 0)

	r.Reconcile(context.Background())

	assert.Equal(t, entity.ListingAvailable, directory.Get("t-1").Listing.Availability, "failed check leaves tags untouched")
	assert.NoError(t, directory.Err(), "advisory failures never surface to the UI")
}

func TestReconcileSkipsEmptyDirectory(t *testing.T) {
	called := false
	chat := &stubChat{
		checkListingsFn: func(ctx context.Context, listingIDs []string) (map[string]entity.Availability, error) {
			called = true
			return nil, nil
		},
	}
	r := NewReconciler(chat, NewThreadDirectory(chat, 0), 0)

	r.Reconcile(context.Background())

	assert.False(t, called, "no bulk check without listings to check")
}
