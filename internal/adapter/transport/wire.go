package transport

import (
	"encoding/json"
	"time"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
)

// Wire shapes for the marketplace chat API. Everything on the wire is
// snake_case inside the API's standard envelope; this file is the pure
// translation layer between those shapes and the domain structs.

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *errorInfo      `json:"error,omitempty"`
}

type errorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wireListing struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	PriceAmount  float64 `json:"price_amount"`
	Currency     string  `json:"currency"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Availability string  `json:"availability,omitempty"`
}

type wireParticipant struct {
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type wireThread struct {
	ID                 string          `json:"id"`
	BuyerID            string          `json:"buyer_id"`
	SellerID           string          `json:"seller_id"`
	Status             string          `json:"status"`
	Listing            wireListing     `json:"listing"`
	OtherParty         wireParticipant `json:"other_party"`
	LastMessageAt      time.Time       `json:"last_message_at"`
	LastMessagePreview string          `json:"last_message_preview,omitempty"`
	UnreadCount        int             `json:"unread_count"`
	Archived           bool            `json:"archived"`
	LastReadMessageID  string          `json:"last_read_message_id,omitempty"`
	LastReadAt         time.Time       `json:"last_read_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

type wireAttachment struct {
	Type        string `json:"type"`
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

type wireMessage struct {
	ID          string                 `json:"id"`
	ThreadID    string                 `json:"thread_id"`
	SenderID    string                 `json:"sender_id"`
	SenderName  string                 `json:"sender_name,omitempty"`
	Body        string                 `json:"body"`
	Attachments []wireAttachment       `json:"attachments,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	ClientID    string                 `json:"client_message_id,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	EditedAt    *time.Time             `json:"edited_at,omitempty"`
	DeletedAt   *time.Time             `json:"deleted_at,omitempty"`
	Deleted     bool                   `json:"deleted,omitempty"`
}

type wireMessagePage struct {
	Messages []wireMessage `json:"messages"`
	HasMore  bool          `json:"has_more"`
}

type createThreadRequest struct {
	ListingID       string           `json:"listing_id"`
	Message         string           `json:"message"`
	Attachments     []wireAttachment `json:"attachments,omitempty"`
	ClientMessageID string           `json:"client_message_id,omitempty"`
}

type sendMessageRequest struct {
	Body            string                 `json:"body,omitempty"`
	Attachments     []wireAttachment       `json:"attachments,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	ClientMessageID string                 `json:"client_message_id,omitempty"`
}

type markReadRequest struct {
	MessageID string `json:"message_id,omitempty"`
}

type listingStatusRequest struct {
	ListingIDs []string `json:"listing_ids"`
}

type listingStatusResponse struct {
	Statuses map[string]string `json:"statuses"`
}

func (w *wireThread) toEntity() *entity.Thread {
	return &entity.Thread{
		ID:       w.ID,
		BuyerID:  w.BuyerID,
		SellerID: w.SellerID,
		Status:   entity.ThreadStatus(w.Status),
		Listing: entity.ListingSnapshot{
			ID:           w.Listing.ID,
			Title:        w.Listing.Title,
			PriceAmount:  w.Listing.PriceAmount,
			Currency:     w.Listing.Currency,
			ThumbnailURL: w.Listing.ThumbnailURL,
			Availability: availabilityFromWire(w.Listing.Availability),
		},
		OtherParty: entity.Participant{
			UserID:      w.OtherParty.UserID,
			Role:        entity.Role(w.OtherParty.Role),
			DisplayName: w.OtherParty.DisplayName,
			AvatarURL:   w.OtherParty.AvatarURL,
		},
		LastMessageAt:      w.LastMessageAt,
		LastMessagePreview: w.LastMessagePreview,
		UnreadCount:        w.UnreadCount,
		Archived:           w.Archived,
		LastReadMessageID:  w.LastReadMessageID,
		LastReadAt:         w.LastReadAt,
		CreatedAt:          w.CreatedAt,
		UpdatedAt:          w.UpdatedAt,
	}
}

func (w *wireMessage) toEntity() *entity.Message {
	msg := &entity.Message{
		ID:         w.ID,
		ThreadID:   w.ThreadID,
		SenderID:   w.SenderID,
		SenderName: w.SenderName,
		Body:       w.Body,
		Metadata:   w.Metadata,
		ClientID:   w.ClientID,
		CreatedAt:  w.CreatedAt,
		EditedAt:   w.EditedAt,
		DeletedAt:  w.DeletedAt,
		Deleted:    w.Deleted,
	}
	for _, a := range w.Attachments {
		msg.Attachments = append(msg.Attachments, a.toEntity())
	}
	return msg
}

func (w wireAttachment) toEntity() entity.Attachment {
	return entity.Attachment{
		Type:        entity.AttachmentType(w.Type),
		URL:         w.URL,
		Name:        w.Name,
		Size:        w.Size,
		ContentType: w.ContentType,
		Width:       w.Width,
		Height:      w.Height,
	}
}

func attachmentToWire(a entity.Attachment) wireAttachment {
	return wireAttachment{
		Type:        string(a.Type),
		URL:         a.URL,
		Name:        a.Name,
		Size:        a.Size,
		ContentType: a.ContentType,
		Width:       a.Width,
		Height:      a.Height,
	}
}

func attachmentsToWire(attachments []entity.Attachment) []wireAttachment {
	if len(attachments) == 0 {
		return nil
	}
	out := make([]wireAttachment, len(attachments))
	for i, a := range attachments {
		out[i] = attachmentToWire(a)
	}
	return out
}

func availabilityFromWire(s string) entity.Availability {
	switch entity.Availability(s) {
	case entity.ListingUnavailable:
		return entity.ListingUnavailable
	case entity.ListingDeleted:
		return entity.ListingDeleted
	default:
		return entity.ListingAvailable
	}
}

func createThreadToWire(in transport.CreateThreadInput) createThreadRequest {
	return createThreadRequest{
		ListingID:       in.ListingID,
		Message:         in.Message,
		Attachments:     attachmentsToWire(in.Attachments),
		ClientMessageID: in.ClientMessageID,
	}
}

func sendMessageToWire(in transport.SendMessageInput) sendMessageRequest {
	return sendMessageRequest{
		Body:            in.Body,
		Attachments:     attachmentsToWire(in.Attachments),
		Metadata:        in.Metadata,
		ClientMessageID: in.ClientMessageID,
	}
}
