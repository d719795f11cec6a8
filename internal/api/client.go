// Package api is the client's outbound request gateway. Every call re-reads
// the current credential from its TokenSource, so a logout is honored by the
// next request without any cached state.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"scrapp.io/client/internal/apperr"
	"scrapp.io/client/internal/auth"
)

// TokenSource yields the credential to attach to a request, if any.
// *auth.Store satisfies it.
type TokenSource interface {
	Token() (string, bool)
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	scheme     string
	logger     *zap.Logger
}

type Option func(*Client)

// WithHTTPClient replaces the default transport. Timeouts are whatever hc
// carries; the gateway imposes none of its own.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithScheme sets the Authorization scheme (auth.SchemeToken by default).
func WithScheme(scheme string) Option {
	return func(c *Client) { c.scheme = scheme }
}

// NewClient builds a gateway rooted at baseURL. tokens may be nil for
// endpoints that are always called anonymously.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	c := &Client{
		baseURL:    u,
		httpClient: http.DefaultClient,
		tokens:     tokens,
		scheme:     auth.SchemeToken,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve turns target into an absolute URL. Absolute targets (such as a
// pagination "next" link) are returned verbatim; relative ones are joined to
// the base endpoint.
func (c *Client) Resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid request target %q: %w", target, err)
	}
	if ref.IsAbs() {
		return target, nil
	}
	return c.baseURL.ResolveReference(ref).String(), nil
}

// Get issues a GET for path with optional query parameters and decodes the
// response into v (which may be nil or a *json.RawMessage).
func (c *Client) Get(ctx context.Context, path string, query url.Values, v any) error {
	target := path
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + query.Encode()
	}
	return c.Do(ctx, http.MethodGet, target, nil, v)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, v any) error {
	return c.Do(ctx, http.MethodPost, path, body, v)
}

// Do sends a JSON request. body may be nil.
func (c *Client) Do(ctx context.Context, method, target string, body, v any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.send(ctx, method, target, reader, contentType, v)
}

// File is one multipart file part.
type File struct {
	Field       string
	Filename    string
	ContentType string
	Content     io.Reader
}

// PostMultipart uploads file as multipart/form-data.
func (c *Client) PostMultipart(ctx context.Context, path string, file File, v any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Filename))
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	header.Set("Content-Type", ct)

	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return fmt.Errorf("read upload content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	return c.send(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), v)
}

func (c *Client) send(ctx context.Context, method, target string, body io.Reader, contentType string, v any) error {
	op := method + " " + target

	fullURL, err := c.Resolve(target)
	if err != nil {
		return &apperr.Error{Kind: apperr.ErrTransport, Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return &apperr.Error{Kind: apperr.ErrTransport, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	authenticated := false
	if c.tokens != nil {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", auth.HeaderValue(c.scheme, token))
			authenticated = true
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Request failed", zap.String("method", method), zap.String("url", fullURL), zap.Error(err))
		return &apperr.Error{Kind: apperr.ErrTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("Request completed",
		zap.String("method", method),
		zap.String("url", fullURL),
		zap.Bool("authenticated", authenticated),
		zap.Int("status", resp.StatusCode))

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.Error{Kind: apperr.ErrTransport, Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, structured := apperr.Describe(respBody, resp.Header.Get("Content-Type"))
		kind := apperr.ErrTransport
		if structured {
			kind = apperr.ErrUpstream
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return &apperr.Error{
			Kind:       kind,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Detail:     detail,
		}
	}

	if v == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if raw, ok := v.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], respBody...)
		return nil
	}
	if err := json.Unmarshal(respBody, v); err != nil {
		return &apperr.Error{
			Kind:       apperr.ErrTransport,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Err:        fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}
