package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"marketchat/internal/domain/entity"
	"marketchat/internal/domain/transport"
	"marketchat/pkg/errors"
	"marketchat/pkg/logger"
)

// TokenSource supplies the bearer token for API calls and can refresh it
// once when the API rejects it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// Client implements the chat core's transport contracts over the
// marketplace HTTP API. Auth expiry is handled here (refresh-and-retry once)
// and stays invisible to the core unless the refresh itself fails.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
}

var _ transport.ChatTransport = (*Client)(nil)
var _ transport.Uploader = (*Client)(nil)

func NewClient(baseURL string, tokens TokenSource, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
	}
}

func (c *Client) ListThreads(ctx context.Context, query transport.ThreadQuery) ([]*entity.Thread, error) {
	q := url.Values{}
	if query.Role != "" {
		q.Set("role", string(query.Role))
	}
	if query.Archived {
		q.Set("archived", "true")
	}
	if query.UnreadOnly {
		q.Set("unread", "true")
	}
	if query.MyAdsOnly {
		q.Set("my_ads", "true")
	}

	var threads []wireThread
	if err := c.do(ctx, http.MethodGet, "/v1/chat/threads", q, nil, "", &threads); err != nil {
		return nil, err
	}

	out := make([]*entity.Thread, len(threads))
	for i := range threads {
		out[i] = threads[i].toEntity()
	}
	return out, nil
}

func (c *Client) CreateThread(ctx context.Context, input transport.CreateThreadInput) (*entity.Thread, error) {
	body, err := json.Marshal(createThreadToWire(input))
	if err != nil {
		return nil, errors.Internal("Failed to encode thread request", err)
	}

	var thread wireThread
	if err := c.do(ctx, http.MethodPost, "/v1/chat/threads", nil, body, "application/json", &thread); err != nil {
		return nil, err
	}
	return thread.toEntity(), nil
}

func (c *Client) GetThread(ctx context.Context, threadID string) (*entity.Thread, error) {
	var thread wireThread
	path := "/v1/chat/threads/" + url.PathEscape(threadID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, "", &thread); err != nil {
		return nil, err
	}
	return thread.toEntity(), nil
}

func (c *Client) ListMessages(ctx context.Context, input transport.ListMessagesInput) (*transport.MessagePage, error) {
	q := url.Values{}
	if input.Before != nil {
		q.Set("before", input.Before.UTC().Format(time.RFC3339Nano))
	}
	if input.After != nil {
		q.Set("after", input.After.UTC().Format(time.RFC3339Nano))
	}
	if input.Limit > 0 {
		q.Set("limit", strconv.Itoa(input.Limit))
	}

	var page wireMessagePage
	path := "/v1/chat/threads/" + url.PathEscape(input.ThreadID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, q, nil, "", &page); err != nil {
		return nil, err
	}

	out := &transport.MessagePage{HasMore: page.HasMore}
	for i := range page.Messages {
		out.Messages = append(out.Messages, page.Messages[i].toEntity())
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, input transport.SendMessageInput) (*entity.Message, error) {
	body, err := json.Marshal(sendMessageToWire(input))
	if err != nil {
		return nil, errors.Internal("Failed to encode message request", err)
	}

	var msg wireMessage
	path := "/v1/chat/threads/" + url.PathEscape(input.ThreadID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, nil, body, "application/json", &msg); err != nil {
		return nil, err
	}
	return msg.toEntity(), nil
}

func (c *Client) MarkRead(ctx context.Context, threadID, messageID string) (*entity.Thread, error) {
	body, err := json.Marshal(markReadRequest{MessageID: messageID})
	if err != nil {
		return nil, errors.Internal("Failed to encode read request", err)
	}

	var thread wireThread
	path := "/v1/chat/threads/" + url.PathEscape(threadID) + "/read"
	if err := c.do(ctx, http.MethodPost, path, nil, body, "application/json", &thread); err != nil {
		return nil, err
	}
	return thread.toEntity(), nil
}

func (c *Client) Archive(ctx context.Context, threadID string) (*entity.Thread, error) {
	return c.threadAction(ctx, threadID, "archive")
}

func (c *Client) Unarchive(ctx context.Context, threadID string) (*entity.Thread, error) {
	return c.threadAction(ctx, threadID, "unarchive")
}

func (c *Client) threadAction(ctx context.Context, threadID, action string) (*entity.Thread, error) {
	var thread wireThread
	path := "/v1/chat/threads/" + url.PathEscape(threadID) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, nil, nil, "", &thread); err != nil {
		return nil, err
	}
	return thread.toEntity(), nil
}

func (c *Client) DeleteThread(ctx context.Context, threadID string) error {
	path := "/v1/chat/threads/" + url.PathEscape(threadID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, "", nil)
}

func (c *Client) CheckListings(ctx context.Context, listingIDs []string) (map[string]entity.Availability, error) {
	body, err := json.Marshal(listingStatusRequest{ListingIDs: listingIDs})
	if err != nil {
		return nil, errors.Internal("Failed to encode status request", err)
	}

	var resp listingStatusResponse
	if err := c.do(ctx, http.MethodPost, "/v1/listings/status", nil, body, "application/json", &resp); err != nil {
		return nil, err
	}

	out := make(map[string]entity.Availability, len(resp.Statuses))
	for id, tag := range resp.Statuses {
		out[id] = availabilityFromWire(tag)
	}
	return out, nil
}

// Upload stores one file against a thread via multipart POST and returns the
// stored-attachment descriptor.
func (c *Client) Upload(ctx context.Context, threadID, name, contentType string, file io.Reader, size int64) (*entity.Attachment, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, errors.Internal("Failed to build upload request", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.Internal("Failed to read upload file", err)
	}
	if contentType != "" {
		mw.WriteField("content_type", contentType)
	}
	if size > 0 {
		mw.WriteField("size", strconv.FormatInt(size, 10))
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Internal("Failed to finish upload request", err)
	}

	var att wireAttachment
	path := "/v1/chat/threads/" + url.PathEscape(threadID) + "/attachments"
	if err := c.do(ctx, http.MethodPost, path, nil, buf.Bytes(), mw.FormDataContentType(), &att); err != nil {
		return nil, err
	}
	a := att.toEntity()
	return &a, nil
}

// do performs one authenticated request. On a 401 it refreshes the token
// once and retries; a second 401 or a failed refresh surfaces as
// Unauthorized.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, contentType string, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		status, data, err := c.roundTrip(ctx, method, path, query, body, contentType, token)
		if err != nil {
			return errors.Internal(fmt.Sprintf("Request %s %s failed", method, path), err)
		}

		if status == http.StatusUnauthorized && attempt == 0 {
			logger.Debug("transport: token rejected on %s %s, refreshing", method, path)
			token, err = c.tokens.Refresh(ctx)
			if err != nil {
				return err
			}
			continue
		}

		return decodeEnvelope(status, data, out)
	}
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, body []byte, contentType, token string) (int, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, data, nil
}

func decodeEnvelope(status int, data []byte, out interface{}) error {
	var env envelope
	if len(data) > 0 {
		if err := json.Unmarshal(data, &env); err != nil {
			return errors.Internal("Failed to decode API response", err)
		}
	}

	if status >= 400 || (len(data) > 0 && !env.Success) {
		code, message := "", http.StatusText(status)
		if env.Error != nil {
			code, message = env.Error.Code, env.Error.Message
		}
		return errors.FromStatus(status, code, message)
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return errors.Internal("Failed to decode API payload", err)
	}
	return nil
}
