// Package registry is the HTTP client of the upstream member registry
// (vmServer). It fetches pages of the padrón for the sync job and single
// members by national id for on-demand lookups.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/gymbridge/internal/common"
	"github.com/dmitrijs2005/gymbridge/internal/logging"
)

const (
	DefaultPagePath   = "/api/internal/padron/socios"
	byNationalIDPath  = "/api/internal/padron/by-dni/"
	opFetchPage       = "fetch_page"
	opGetByNationalID = "get_by_dni"

	// DefaultMaxBodyBytes bounds a response body; 500 members per page is a
	// few hundred KiB.
	DefaultMaxBodyBytes int64 = 32 << 20
)

// Client calls the registry. It never retries; callers own retry policy.
type Client struct {
	baseURL    string
	pagePath   string
	token      string
	maxBody    int64
	httpClient *http.Client
	logger     logging.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client (for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithMaxBodyBytes overrides DefaultMaxBodyBytes.
func WithMaxBodyBytes(n int64) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxBody = n
		}
	}
}

// WithPagePath overrides the page endpoint path.
func WithPagePath(p string) Option {
	return func(cl *Client) {
		if p != "" {
			cl.pagePath = p
		}
	}
}

func NewClient(baseURL, token string, timeout time.Duration, logger logging.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		pagePath:   DefaultPagePath,
		token:      token,
		maxBody:    DefaultMaxBodyBytes,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("module", "registry_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPage fetches one page of members updated since the given cursor.
// since must already be in timex.WireLayout.
func (c *Client) FetchPage(ctx context.Context, since string, page, perPage int) (*PageResult, error) {
	q := url.Values{}
	q.Set("updated_since", since)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))

	status, body, err := c.get(ctx, opFetchPage, c.pagePath+"?"+q.Encode(), "page", page)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, c.fail(ctx, newError(KindUnavailable, opFetchPage, "page endpoint not found", status, nil), "page", page)
	}

	result, err := decodePage(body)
	if err != nil {
		return nil, c.fail(ctx, err, "page", page)
	}
	return result, nil
}

// GetByNationalID looks up one member. A 404 yields (nil, nil).
func (c *Client) GetByNationalID(ctx context.Context, dni string) (*Member, error) {
	status, body, err := c.get(ctx, opGetByNationalID, byNationalIDPath+url.PathEscape(dni), "dni", dni)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		c.logger.Info(ctx, "registry member not found", "dni", dni, "status", status, "error_type", "not_found")
		return nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		e := newError(KindFormat, opGetByNationalID, "response is not a JSON object", status, err)
		e.Preview = preview(body)
		return nil, c.fail(ctx, e, "dni", dni)
	}
	return &Member{NationalID: dni, Payload: body}, nil
}

// get performs the request and classifies transport and status failures.
// 2xx and 404 are returned to the caller with the body.
func (c *Client) get(ctx context.Context, op, pathAndQuery string, logArgs ...any) (int, []byte, error) {
	start := time.Now()

	if c.baseURL == "" || c.token == "" {
		return 0, nil, c.fail(ctx, newError(KindUnavailable, op, "client is not properly configured", 0, nil), append(logArgs, "error_type", "misconfigured")...)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return 0, nil, c.fail(ctx, newError(KindUnavailable, op, "failed to create request", 0, err), logArgs...)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(common.InternalTokenHeaderName, c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := "failed to execute request"
		if isTimeout(ctx, err) {
			msg = "request timeout"
		}
		return 0, nil, c.fail(ctx, newError(KindUnavailable, op, msg, 0, err), append(logArgs, "error_type", "network", "duration_ms", since(start))...)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return 0, nil, c.fail(ctx, newError(KindUnavailable, op, "failed to read response body", resp.StatusCode, err), append(logArgs, "error_type", "network")...)
	}
	if int64(len(body)) > c.maxBody {
		return 0, nil, c.fail(ctx, newError(KindFormat, op, "response body exceeds size limit", resp.StatusCode, nil), append(logArgs, "error_type", "invalid_json", "limit_bytes", c.maxBody)...)
	}

	logArgs = append(logArgs, "status", resp.StatusCode, "duration_ms", since(start))

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, nil, c.fail(ctx, newError(KindAuthFailed, op, "authentication failed", resp.StatusCode, nil), append(logArgs, "error_type", "auth")...)
	case resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, body, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, nil, c.fail(ctx, newError(KindUnavailable, op, "upstream error", resp.StatusCode, nil), append(logArgs, "error_type", "upstream_error")...)
	}

	c.logger.Debug(ctx, "registry request ok", append(logArgs, "op", op, "error_type", "ok")...)
	return resp.StatusCode, body, nil
}

func (c *Client) fail(ctx context.Context, err error, logArgs ...any) error {
	var re *Error
	if errors.As(err, &re) {
		args := append([]any{"op", re.Op, "kind", string(re.Kind)}, logArgs...)
		if re.Preview != "" {
			args = append(args, "preview", re.Preview)
		}
		c.logger.Error(ctx, re.Message, append(args, "error", err)...)
	}
	return err
}

type pageEnvelope struct {
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		CurrentPage flexInt `json:"current_page"`
		LastPage    flexInt `json:"last_page"`
	} `json:"pagination"`
	ServerTime json.RawMessage `json:"server_time"`
}

// decodePage turns a page body into a PageResult. A body that is not a JSON
// object is a format error; a missing or non-array "data" is not.
func decodePage(body []byte) (*PageResult, error) {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil || isNull(body) {
		e := newError(KindFormat, opFetchPage, "response is not a JSON object", 0, err)
		e.Preview = preview(body)
		return nil, e
	}

	result := &PageResult{Body: body}

	if env.Pagination != nil {
		result.Pagination = Pagination{
			CurrentPage: env.Pagination.CurrentPage.or(0),
			LastPage:    env.Pagination.LastPage.or(0),
		}
	}

	if !isNull(env.ServerTime) {
		var s string
		if err := json.Unmarshal(env.ServerTime, &s); err == nil {
			result.ServerTime = s
		}
	}

	var items []json.RawMessage
	if isNull(env.Data) || json.Unmarshal(env.Data, &items) != nil {
		return result, nil
	}
	result.HasData = true

	result.Data = make([]Record, 0, len(items))
	for _, item := range items {
		rec, err := NewRecord(item)
		if err != nil {
			// non-object entries carry nothing mappable
			continue
		}
		result.Data = append(result.Data, rec)
	}
	return result, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func since(start time.Time) int64 {
	return time.Since(start).Milliseconds()
}
