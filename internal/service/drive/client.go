package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"drivelens/internal/domain"
	"drivelens/internal/logging"
	"drivelens/internal/metrics"
	"drivelens/internal/retry"
)

// Client talks to a Drive v3 shaped REST API. Every call carries the caller's
// bearer credential; the client holds none of its own.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      retry.Config
	pageSize   int
	maxBytes   int64
}

var _ Storage = (*Client)(nil)

// NewClient creates a remote store client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxContentBytes <= 0 {
		cfg.MaxContentBytes = DefaultMaxContentBytes
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		// No overall client timeout: downloads stream for as long as they take.
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: cfg.Timeout,
			},
		},
		retry:    cfg.Retry,
		pageSize: cfg.PageSize,
		maxBytes: cfg.MaxContentBytes,
	}
}

type listResponse struct {
	NextPageToken string        `json:"nextPageToken"`
	Files         []domain.File `json:"files"`
}

// ListFiles returns one page of files matching the Drive query q.
func (c *Client) ListFiles(ctx context.Context, credential, q, pageToken string) (domain.Page, error) {
	params := url.Values{}
	params.Set("q", q)
	params.Set("pageSize", strconv.Itoa(c.pageSize))
	params.Set("fields", listFields)
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	page, err := retry.Do(ctx, c.retry, func() (domain.Page, error) {
		resp, err := c.do(ctx, "list", http.MethodGet, "/files?"+params.Encode(), credential, nil)
		if err != nil {
			return domain.Page{}, err
		}
		defer resp.Body.Close()

		var lr listResponse
		if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
			return domain.Page{}, domain.FetchFailed("failed to decode file listing", err)
		}
		if lr.Files == nil {
			lr.Files = []domain.File{}
		}
		return domain.Page{Files: lr.Files, NextCursor: lr.NextPageToken}, nil
	})
	if err != nil {
		return domain.Page{}, err
	}
	return page, nil
}

// GetContent downloads the raw bytes of a file.
func (c *Client) GetContent(ctx context.Context, credential, fileID string) ([]byte, string, error) {
	content, err := c.OpenContent(ctx, credential, fileID)
	if err != nil {
		return nil, "", err
	}
	defer content.Body.Close()

	data, err := c.readAll(content.Body)
	if err != nil {
		return nil, "", err
	}
	return data, content.ContentType, nil
}

// Export converts a native document to mimeType and returns the bytes.
func (c *Client) Export(ctx context.Context, credential, fileID, mimeType string) ([]byte, error) {
	content, err := c.OpenExport(ctx, credential, fileID, mimeType)
	if err != nil {
		return nil, err
	}
	defer content.Body.Close()

	return c.readAll(content.Body)
}

// OpenContent starts a raw download. The caller owns the body.
func (c *Client) OpenContent(ctx context.Context, credential, fileID string) (*Content, error) {
	return c.open(ctx, "content", "/files/"+url.PathEscape(fileID)+"?alt=media", credential)
}

// OpenExport starts an export download. The caller owns the body.
func (c *Client) OpenExport(ctx context.Context, credential, fileID, mimeType string) (*Content, error) {
	path := "/files/" + url.PathEscape(fileID) + "/export?mimeType=" + url.QueryEscape(mimeType)
	return c.open(ctx, "export", path, credential)
}

func (c *Client) open(ctx context.Context, op, path, credential string) (*Content, error) {
	return retry.Do(ctx, c.retry, func() (*Content, error) {
		resp, err := c.do(ctx, op, http.MethodGet, path, credential, nil)
		if err != nil {
			return nil, err
		}
		return &Content{
			Body:        resp.Body,
			ContentType: resp.Header.Get("Content-Type"),
			Size:        resp.ContentLength,
		}, nil
	})
}

// Rename sets a new name on fileID.
func (c *Client) Rename(ctx context.Context, credential, fileID, name string) error {
	return c.mutate(ctx, "rename", http.MethodPatch, "/files/"+url.PathEscape(fileID), credential,
		map[string]string{"name": name})
}

// Move reparents fileID under targetFolderID, detaching it from fromParents.
func (c *Client) Move(ctx context.Context, credential, fileID, targetFolderID string, fromParents []string) error {
	params := url.Values{}
	params.Set("addParents", targetFolderID)
	var remove []string
	for _, p := range fromParents {
		if p != "" && p != targetFolderID {
			remove = append(remove, p)
		}
	}
	if len(remove) > 0 {
		params.Set("removeParents", strings.Join(remove, ","))
	}
	return c.mutate(ctx, "move", http.MethodPatch, "/files/"+url.PathEscape(fileID)+"?"+params.Encode(), credential,
		map[string]string{})
}

// Delete permanently removes fileID.
func (c *Client) Delete(ctx context.Context, credential, fileID string) error {
	return c.mutate(ctx, "delete", http.MethodDelete, "/files/"+url.PathEscape(fileID), credential, nil)
}

type permissionRequest struct {
	Role         domain.Role `json:"role"`
	Type         string      `json:"type"`
	EmailAddress string      `json:"emailAddress"`
}

// Share grants role on fileID to the user with email.
func (c *Client) Share(ctx context.Context, credential, fileID, email string, role domain.Role) error {
	return c.mutate(ctx, "share", http.MethodPost, "/files/"+url.PathEscape(fileID)+"/permissions", credential,
		permissionRequest{Role: role, Type: "user", EmailAddress: email})
}

// mutate issues a single non-retried request and discards the body.
func (c *Client) mutate(ctx context.Context, op, method, path, credential string, body interface{}) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		payload = bytes.NewReader(data)
	}

	resp, err := c.do(ctx, op, method, path, credential, payload)
	if err != nil {
		// Mutations are not retried, so drop the retry marker.
		var re retry.RetryableError
		if errors.As(err, &re) {
			err = re.Err
		}
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// do sends one request and maps failures to domain errors. Transport errors
// and 5xx responses are marked retryable. On success the caller owns the body.
func (c *Client) do(ctx context.Context, op, method, path, credential string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordRemoteRequest(op, 0)
		if ctx.Err() != nil {
			return nil, domain.FetchFailed("request cancelled", ctx.Err())
		}
		return nil, retry.Retryable(domain.FetchFailed("remote store unreachable", err))
	}
	metrics.RecordRemoteRequest(op, resp.StatusCode)

	logging.Debug("remote request",
		zap.String("op", op),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return nil, statusError(op, resp.StatusCode, detail)
}

// apiError is the error envelope the remote store returns.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func statusError(op string, status int, body []byte) error {
	msg := http.StatusText(status)
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Error.Message != "" {
		msg = ae.Error.Message
	}
	cause := fmt.Errorf("%s: remote returned %d: %s", op, status, msg)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.Forbidden(cause)
	case status == http.StatusNotFound:
		return domain.FetchFailed("file not found", cause)
	case status == http.StatusTooManyRequests || status >= 500:
		return retry.Retryable(domain.FetchFailed("remote store error", cause))
	}
	return domain.FetchFailed(fmt.Sprintf("%s failed: %s", op, msg), cause)
}

func (c *Client) readAll(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, c.maxBytes+1))
	if err != nil {
		return nil, domain.FetchFailed("failed to read file content", err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, domain.FetchFailed(fmt.Sprintf("file exceeds the %d byte preview limit", c.maxBytes), nil)
	}
	return data, nil
}
