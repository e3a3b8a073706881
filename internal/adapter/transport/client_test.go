package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
	"marketchat/pkg/errors"
)

// stubTokens is a TokenSource whose refresh swaps in a second token.
type stubTokens struct {
	token     string
	next      string
	refreshes atomic.Int32
}

func (s *stubTokens) Token(ctx context.Context) (string, error) { return s.token, nil }

func (s *stubTokens) Refresh(ctx context.Context) (string, error) {
	s.refreshes.Add(1)
	if s.next == "" {
		return "", errors.Unauthorized("Session expired", nil)
	}
	s.token = s.next
	return s.next, nil
}

func newTestClient(t *testing.T, e *echo.Echo, tokens *stubTokens) *Client {
	t.Helper()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	if tokens == nil {
		tokens = &stubTokens{token: "tok-1"}
	}
	return NewClient(srv.URL, tokens, 5*time.Second)
}

func ok(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": data})
}

func apiError(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{
		"success": false,
		"error":   echo.Map{"code": code, "message": message},
	})
}

func TestListThreadsEncodesFilterParams(t *testing.T) {
	var seen map[string]string
	e := echo.New()
	e.GET("/v1/chat/threads", func(c echo.Context) error {
		seen = map[string]string{
			"role":     c.QueryParam("role"),
			"archived": c.QueryParam("archived"),
			"unread":   c.QueryParam("unread"),
			"my_ads":   c.QueryParam("my_ads"),
		}
		return ok(c, []echo.Map{{
			"id":       "t-1",
			"buyer_id": "u-1",
			"status":   "active",
			"listing":  echo.Map{"id": "l-1", "title": "Bike", "price_amount": 120.50, "currency": "EUR"},
		}})
	})
	client := newTestClient(t, e, nil)

	threads, err := client.ListThreads(context.Background(), transport.ThreadQuery{
		Role:     entity.RoleBuyer,
		Archived: true,
	})

	require.NoError(t, err)
	assert.Equal(t, "buyer", seen["role"])
	assert.Equal(t, "true", seen["archived"])
	assert.Empty(t, seen["unread"], "unset flags stay off the wire")
	assert.Empty(t, seen["my_ads"])

	require.Len(t, threads, 1)
	assert.Equal(t, entity.ThreadActive, threads[0].Status)
	assert.Equal(t, 120.50, threads[0].Listing.PriceAmount)
	assert.Equal(t, "EUR", threads[0].Listing.Currency)
}

func TestListMessagesSendsPaginationBounds(t *testing.T) {
	var gotBefore, gotLimit string
	e := echo.New()
	e.GET("/v1/chat/threads/:id/messages", func(c echo.Context) error {
		gotBefore = c.QueryParam("before")
		gotLimit = c.QueryParam("limit")
		return ok(c, echo.Map{
			"messages": []echo.Map{
				{"id": "m-1", "thread_id": c.Param("id"), "body": "hi", "created_at": "2026-03-01T09:00:00Z"},
				{"id": "m-2", "thread_id": c.Param("id"), "body": "there", "created_at": "2026-03-01T09:01:00Z", "client_message_id": "c-2"},
			},
			"has_more": true,
		})
	})
	client := newTestClient(t, e, nil)

	before := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	page, err := client.ListMessages(context.Background(), transport.ListMessagesInput{
		ThreadID: "t-1",
		Before:   &before,
		Limit:    30,
	})

	require.NoError(t, err)
	assert.Equal(t, "2026-03-01T10:00:00Z", gotBefore)
	assert.Equal(t, "30", gotLimit)
	assert.True(t, page.HasMore)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "m-1", page.Messages[0].ID)
	assert.Equal(t, "c-2", page.Messages[1].ClientID)
}

func TestSendMessageWireShape(t *testing.T) {
	var body map[string]interface{}
	e := echo.New()
	e.POST("/v1/chat/threads/:id/messages", func(c echo.Context) error {
		if err := c.Bind(&body); err != nil {
			return err
		}
		return ok(c, echo.Map{
			"id":                "m-9",
			"thread_id":         c.Param("id"),
			"body":              body["body"],
			"client_message_id": body["client_message_id"],
			"created_at":        "2026-03-01T09:00:00Z",
		})
	})
	client := newTestClient(t, e, nil)

	msg, err := client.SendMessage(context.Background(), transport.SendMessageInput{
		ThreadID:        "t-1",
		Body:            "see you at noon",
		ClientMessageID: "c-42",
		Attachments: []entity.Attachment{
			{Type: entity.AttachmentImage, URL: "https://cdn.example/x.png", Size: 100, ContentType: "image/png"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "see you at noon", body["body"])
	assert.Equal(t, "c-42", body["client_message_id"])
	atts, isSlice := body["attachments"].([]interface{})
	require.True(t, isSlice)
	require.Len(t, atts, 1)
	att := atts[0].(map[string]interface{})
	assert.Equal(t, "image", att["type"])
	assert.Equal(t, "image/png", att["content_type"])

	assert.Equal(t, "m-9", msg.ID)
	assert.Equal(t, "c-42", msg.ClientID)
}

func TestCreateThreadWireShape(t *testing.T) {
	var body map[string]interface{}
	e := echo.New()
	e.POST("/v1/chat/threads", func(c echo.Context) error {
		if err := c.Bind(&body); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, echo.Map{
			"success": true,
			"data": echo.Map{
				"id":                   "t-new",
				"status":               "active",
				"listing":              echo.Map{"id": body["listing_id"]},
				"last_message_preview": body["message"],
			},
		})
	})
	client := newTestClient(t, e, nil)

	thread, err := client.CreateThread(context.Background(), transport.CreateThreadInput{
		ListingID:       "l-42",
		Message:         "Is this still available?",
		ClientMessageID: "c-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "l-42", body["listing_id"])
	assert.Equal(t, "Is this still available?", body["message"])
	assert.Equal(t, "c-1", body["client_message_id"])
	assert.Equal(t, "t-new", thread.ID)
	assert.Equal(t, "Is this still available?", thread.LastMessagePreview)
}

func TestUnauthorizedRefreshesAndRetriesOnce(t *testing.T) {
	var authHeaders []string
	e := echo.New()
	e.GET("/v1/chat/threads/:id", func(c echo.Context) error {
		auth := c.Request().Header.Get("Authorization")
		authHeaders = append(authHeaders, auth)
		if auth != "Bearer tok-2" {
			return apiError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token expired")
		}
		return ok(c, echo.Map{"id": c.Param("id"), "status": "active"})
	})
	tokens := &stubTokens{token: "tok-1", next: "tok-2"}
	client := newTestClient(t, e, tokens)

	thread, err := client.GetThread(context.Background(), "t-1")

	require.NoError(t, err)
	assert.Equal(t, "t-1", thread.ID)
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-2"}, authHeaders)
	assert.Equal(t, int32(1), tokens.refreshes.Load())
}

func TestUnauthorizedSurfacesWhenRetryFails(t *testing.T) {
	e := echo.New()
	e.GET("/v1/chat/threads/:id", func(c echo.Context) error {
		return apiError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Token revoked")
	})
	tokens := &stubTokens{token: "tok-1", next: "tok-2"}
	client := newTestClient(t, e, tokens)

	_, err := client.GetThread(context.Background(), "t-1")

	assert.True(t, errors.Is(err, "UNAUTHORIZED"))
	assert.Equal(t, int32(1), tokens.refreshes.Load(), "only one refresh per request")
}

func TestErrorEnvelopeMapsToAppError(t *testing.T) {
	e := echo.New()
	e.GET("/v1/chat/threads/:id", func(c echo.Context) error {
		return apiError(c, http.StatusNotFound, "NOT_FOUND", "Thread not found")
	})
	client := newTestClient(t, e, nil)

	_, err := client.GetThread(context.Background(), "t-missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, "NOT_FOUND"))
	assert.Equal(t, "NOT_FOUND: Thread not found", err.Error())
}

func TestUploadPostsMultipartForm(t *testing.T) {
	var fileName, fileBody, contentType, size string
	e := echo.New()
	e.POST("/v1/chat/threads/:id/attachments", func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return err
		}
		fileName = fh.Filename
		f, err := fh.Open()
		if err != nil {
			return err
		}
		defer f.Close()
		buf := make([]byte, fh.Size)
		n, _ := f.Read(buf)
		fileBody = string(buf[:n])
		contentType = c.FormValue("content_type")
		size = c.FormValue("size")
		return ok(c, echo.Map{
			"type":         "image",
			"url":          "https://cdn.example/t-1/photo.png",
			"name":         fh.Filename,
			"size":         fh.Size,
			"content_type": contentType,
		})
	})
	client := newTestClient(t, e, nil)

	att, err := client.Upload(context.Background(), "t-1", "photo.png", "image/png", strings.NewReader("png-bytes"), 9)

	require.NoError(t, err)
	assert.Equal(t, "photo.png", fileName)
	assert.Equal(t, "png-bytes", fileBody)
	assert.Equal(t, "image/png", contentType)
	assert.Equal(t, "9", size)
	assert.Equal(t, entity.AttachmentImage, att.Type)
	assert.Equal(t, "https://cdn.example/t-1/photo.png", att.URL)
}

func TestCheckListingsMapsStatuses(t *testing.T) {
	var body map[string]interface{}
	e := echo.New()
	e.POST("/v1/listings/status", func(c echo.Context) error {
		if err := c.Bind(&body); err != nil {
			return err
		}
		return ok(c, echo.Map{"statuses": echo.Map{
			"l-1": "deleted",
			"l-2": "unavailable",
			"l-3": "something-new",
		}})
	})
	client := newTestClient(t, e, nil)

	statuses, err := client.CheckListings(context.Background(), []string{"l-1", "l-2", "l-3"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []interface{}{"l-1", "l-2", "l-3"}, body["listing_ids"])
	assert.Equal(t, entity.ListingDeleted, statuses["l-1"])
	assert.Equal(t, entity.ListingUnavailable, statuses["l-2"])
	assert.Equal(t, entity.ListingAvailable, statuses["l-3"], "unknown tags degrade to available")
}

func TestDeleteThreadHitsDeleteRoute(t *testing.T) {
	deleted := ""
	e := echo.New()
	e.DELETE("/v1/chat/threads/:id", func(c echo.Context) error {
		deleted = c.Param("id")
		return ok(c, nil)
	})
	client := newTestClient(t, e, nil)

	require.NoError(t, client.DeleteThread(context.Background(), "t-1"))
	assert.Equal(t, "t-1", deleted)
}

func TestMarkReadPostsMessageID(t *testing.T) {
	var body map[string]interface{}
	e := echo.New()
	e.POST("/v1/chat/threads/:id/read", func(c echo.Context) error {
		if err := c.Bind(&body); err != nil {
			return err
		}
		return ok(c, echo.Map{
			"id":                   c.Param("id"),
			"status":               "active",
			"unread_count":         0,
			"last_read_message_id": body["message_id"],
		})
	})
	client := newTestClient(t, e, nil)

	thread, err := client.MarkRead(context.Background(), "t-1", "m-7")

	require.NoError(t, err)
	assert.Equal(t, "m-7", body["message_id"])
	assert.Equal(t, "m-7", thread.LastReadMessageID)
	assert.Equal(t, 0, thread.UnreadCount)
}
