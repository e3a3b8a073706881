package entity

// Availability tags a listing's current state relative to the thread that
// references it. Advisory only: threads stay readable and sendable regardless
// of the tag.
type Availability string

const (
	ListingAvailable   Availability = "available"
	ListingUnavailable Availability = "unavailable"
	ListingDeleted     Availability = "deleted"
)

// ListingSnapshot is the denormalized listing summary embedded in a thread.
// Captured at thread creation; only the availability tag is refreshed
// afterwards.
type ListingSnapshot struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	PriceAmount  float64      `json:"price_amount"`
	Currency     string       `json:"currency"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
	Availability Availability `json:"availability,omitempty"`
}
