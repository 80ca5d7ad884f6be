// Package remote реализует storage.Storage поверх HTTP API из internal/httpapi.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/xevi10h/redbee-expo-sub000/internal/domain"
	"github.com/xevi10h/redbee-expo-sub000/internal/httpapi"
	"github.com/xevi10h/redbee-expo-sub000/internal/storage"
)

const (
	DefaultTimeout = 10 * time.Second

	// maxResponseBytes ограничивает чтение тела ответа
	maxResponseBytes = 4 << 20
)

// Client - HTTP-клиент удалённого хранилища комментариев.
type Client struct {
	baseURL *url.URL
	client  *http.Client
}

type Option func(*Client)

// WithHTTPClient подменяет http.Client, например на клиент httptest.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// New создаёт клиента для сервера по адресу baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}

	c := &Client{
		baseURL: u,
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var (
	_ storage.Storage      = (*Client)(nil)
	_ storage.BatchReplies = (*Client)(nil)
)

func (c *Client) ListComments(ctx context.Context, contentID, viewerID string, args storage.PaginationArgs) (*domain.Page, error) {
	var page domain.Page
	err := c.do(ctx, http.MethodGet, "/contents/"+url.PathEscape(contentID)+"/comments", pageQuery(args), viewer(viewerID), nil, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) ListReplies(ctx context.Context, parentID, viewerID string, args storage.PaginationArgs) (*domain.Page, error) {
	var page domain.Page
	err := c.do(ctx, http.MethodGet, "/comments/"+url.PathEscape(parentID)+"/replies", pageQuery(args), viewer(viewerID), nil, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) FirstRepliesByParentIDs(ctx context.Context, parentIDs []string, viewerID string, pageSize int) (map[string]*domain.Page, error) {
	q := pageQuery(storage.PaginationArgs{PageSize: pageSize})
	for _, id := range parentIDs {
		q.Add("parent", id)
	}
	pages := make(map[string]*domain.Page, len(parentIDs))
	if err := c.do(ctx, http.MethodGet, "/replies", q, viewer(viewerID), nil, &pages); err != nil {
		return nil, err
	}
	return pages, nil
}

func (c *Client) CreateComment(ctx context.Context, comment *domain.Comment) (*domain.Comment, error) {
	h := viewer(comment.Author.ID)
	h.Set(httpapi.HeaderViewerName, comment.Author.DisplayName)
	if comment.Author.AvatarURL != "" {
		h.Set(httpapi.HeaderViewerAvatar, comment.Author.AvatarURL)
	}

	var created domain.Comment
	in := httpapi.CreateCommentInput{Text: comment.Text, ParentID: comment.ParentID}
	if err := c.do(ctx, http.MethodPost, "/contents/"+url.PathEscape(comment.ContentID)+"/comments", nil, h, in, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateComment(ctx context.Context, id, authorID, text string) (*domain.Comment, error) {
	var updated domain.Comment
	in := httpapi.UpdateCommentInput{Text: text}
	if err := c.do(ctx, http.MethodPatch, "/comments/"+url.PathEscape(id), nil, viewer(authorID), in, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteComment(ctx context.Context, id, authorID string) error {
	return c.do(ctx, http.MethodDelete, "/comments/"+url.PathEscape(id), nil, viewer(authorID), nil, nil)
}

func (c *Client) ToggleLike(ctx context.Context, id, viewerID string) (*domain.LikeState, error) {
	var state domain.LikeState
	if err := c.do(ctx, http.MethodPost, "/comments/"+url.PathEscape(id)+"/like", nil, viewer(viewerID), nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) ReportComment(ctx context.Context, report *domain.Report) error {
	in := httpapi.ReportInput{Reason: report.Reason}
	return c.do(ctx, http.MethodPost, "/comments/"+url.PathEscape(report.CommentID)+"/reports", nil, viewer(report.ReporterID), in, nil)
}

// do выполняет запрос и декодирует ответ в out.
// Ошибки сервера переводятся в таксономию domain, сетевые - в ErrTransient.
func (c *Client) do(ctx context.Context, method, path string, q url.Values, h http.Header, in, out any) error {
	// path уже содержит экранированные сегменты
	endpoint := c.baseURL.String() + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	for k, vs := range h {
		req.Header[k] = vs
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrTransient, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %w", domain.ErrTransient, method, path, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	var resp httpapi.ErrorResponse
	_ = json.Unmarshal(data, &resp)
	if known := httpapi.ErrorForCode(resp.Error.Code); known != nil {
		return known
	}

	msg := resp.Error.Message
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError || status == http.StatusTooManyRequests {
		return fmt.Errorf("%w: server returned %d: %s", domain.ErrTransient, status, msg)
	}
	return fmt.Errorf("server returned %d: %s", status, msg)
}

func viewer(id string) http.Header {
	h := make(http.Header)
	if id != "" {
		h.Set(httpapi.HeaderViewerID, id)
	}
	return h
}

func pageQuery(args storage.PaginationArgs) url.Values {
	q := make(url.Values)
	q.Set("page", strconv.Itoa(args.Page))
	if args.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(args.PageSize))
	}
	return q
}
