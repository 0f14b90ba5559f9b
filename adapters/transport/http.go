// Package transport provides Transport implementations.
package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Skryldev/image-fetcher/core"
	apperrors "github.com/Skryldev/image-fetcher/errors"
	"github.com/Skryldev/image-fetcher/utils"
)

// HTTP fetches image bytes with plain GET requests. Each Fetch runs on its
// own goroutine and reports through the done callback, so callers never block
// on the network.
type HTTP struct {
	client       *http.Client
	headers      http.Header
	timeout      time.Duration
	maxBodyBytes int64
}

// Option configures an HTTP transport.
type Option func(*HTTP)

// WithClient sets the HTTP client used for requests.
func WithClient(client *http.Client) Option {
	return func(t *HTTP) {
		t.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers http.Header) Option {
	return func(t *HTTP) {
		if headers == nil {
			return
		}
		t.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(t *HTTP) {
		if t.headers == nil {
			t.headers = make(http.Header)
		}
		t.headers.Set(key, value)
	}
}

// WithTimeout bounds each request. Zero leaves only the caller's context
// deadline in effect.
func WithTimeout(d time.Duration) Option {
	return func(t *HTTP) {
		t.timeout = d
	}
}

// WithMaxBodyBytes caps how many response bytes are read. Zero means no cap.
func WithMaxBodyBytes(n int64) Option {
	return func(t *HTTP) {
		t.maxBodyBytes = n
	}
}

// NewHTTP creates an HTTP transport.
func NewHTTP(opts ...Option) *HTTP {
	t := &HTTP{client: http.DefaultClient}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = http.DefaultClient
	}
	return t
}

// Fetch GETs url and invokes done exactly once with the body bytes and the
// response Content-Type, or with an error. No retries: a failed request is
// reported as-is.
func (t *HTTP) Fetch(ctx context.Context, url string, done func(*core.RawPayload, error)) {
	go func() {
		done(t.get(ctx, url))
	}()
}

func (t *HTTP) get(ctx context.Context, url string) (*core.RawPayload, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryNetwork, "http.get", err)
	}
	for key, values := range t.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryNetwork, "http.get", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperrors.New(apperrors.CategoryNetwork, "http.get",
			fmt.Errorf("unexpected status for %s: %s", url, resp.Status))
	}

	var body io.Reader = resp.Body
	if t.maxBodyBytes > 0 {
		body = &utils.LimitedReader{R: resp.Body, Max: t.maxBodyBytes}
	}
	buf, err := utils.DrainReader(ctx, body, 32*1024)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryNetwork, "http.get.drain", err)
	}
	raw := utils.CloneBytes(buf.Bytes())
	utils.ReleaseBuffer(buf)

	return &core.RawPayload{
		Bytes:       raw,
		ContentType: resp.Header.Get("Content-Type"),
		Source:      url,
	}, nil
}

var _ core.Transport = (*HTTP)(nil)
