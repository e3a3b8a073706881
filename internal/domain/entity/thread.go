package entity

import "time"

type ThreadStatus string

const (
	ThreadActive   ThreadStatus = "active"
	ThreadArchived ThreadStatus = "archived"
	ThreadClosed   ThreadStatus = "closed"
)

type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
)

// Participant is the "other side" summary shown on a thread.
type Participant struct {
	UserID      string `json:"user_id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Thread is a two-party (buyer, seller) conversation scoped to one listing.
// Exactly one thread exists per (listing, buyer) pair.
type Thread struct {
	ID                 string          `json:"id"`
	BuyerID            string          `json:"buyer_id"`
	SellerID           string          `json:"seller_id"`
	Status             ThreadStatus    `json:"status"`
	Listing            ListingSnapshot `json:"listing"`
	OtherParty         Participant     `json:"other_party"`
	LastMessageAt      time.Time       `json:"last_message_at"`
	LastMessagePreview string          `json:"last_message_preview,omitempty"`
	UnreadCount        int             `json:"unread_count"`
	Archived           bool            `json:"archived"`
	LastReadMessageID  string          `json:"last_read_message_id,omitempty"`
	LastReadAt         time.Time       `json:"last_read_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}
