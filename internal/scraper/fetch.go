package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// BaseURL is the AJP Tour event page root.
const BaseURL = "https://ajptour.com/en/event"

// FailureKind classifies a fetch failure.
type FailureKind string

const (
	FailTimeout    FailureKind = "timeout"
	FailConnection FailureKind = "connection"
	FailHTTP       FailureKind = "http"
)

// FetchError is a typed transport failure. Timeout and connection failures
// are retryable by the pipeline; HTTP failures carry the response status.
type FetchError struct {
	Kind       FailureKind
	EventID    int
	Page       int
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Kind == FailHTTP {
		return fmt.Sprintf("fetch event %d page %d: http status %d", e.EventID, e.Page, e.StatusCode)
	}
	return fmt.Sprintf("fetch event %d page %d: %s: %v", e.EventID, e.Page, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt. HTTP
// failures are terminal: the AJP site answers unknown event ids with a
// redirect, and retrying will not change that.
func (e *FetchError) Retryable() bool {
	return e.Kind == FailTimeout || e.Kind == FailConnection
}

// defaultHeaders identify the client to the AJP site on every request.
// Accept-Encoding is left to the transport so gzip responses are decoded
// transparently.
var defaultHeaders = map[string]string{
	"Accept-Language":           "en-US,en;q=0.8",
	"Upgrade-Insecure-Requests": "1",
	"User-Agent":                "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/56.0.2924.87 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Cache-Control":             "max-age=0",
	"Connection":                "keep-alive",
}

// Fetcher fetches raw match list pages. It is stateless beyond its fixed
// configuration and safe for concurrent use.
type Fetcher struct {
	client  *http.Client
	baseURL string
}

// FetcherOption adjusts Fetcher construction.
type FetcherOption func(*Fetcher)

// WithBaseURL points the fetcher at a different event page root, used by
// tests to target a local server.
func WithBaseURL(url string) FetcherOption {
	return func(f *Fetcher) {
		f.baseURL = url
	}
}

// NewFetcher creates a Fetcher with the given per-request timeout. Redirects
// are not followed: the site redirects unknown event ids, and a redirect
// status must surface as an HTTP failure.
func NewFetcher(timeout time.Duration, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		baseURL: BaseURL,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// PageURL returns the match list URL for one page of an event.
func (f *Fetcher) PageURL(eventID, page int) string {
	url := fmt.Sprintf("%s/%d/schedule/matchlist", f.baseURL, eventID)
	if page > 1 {
		url = fmt.Sprintf("%s?page=%d", url, page)
	}
	return url
}

// FetchPage retrieves the raw HTML of one match list page. The returned
// error, when non-nil, is always a *FetchError.
func (f *Fetcher) FetchPage(ctx context.Context, eventID, page int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.PageURL(eventID, page), nil)
	if err != nil {
		return nil, &FetchError{Kind: FailConnection, EventID: eventID, Page: page, Err: err}
	}
	for k, v := range defaultHeaders {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classify(err), EventID: eventID, Page: page, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Kind: FailHTTP, EventID: eventID, Page: page, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: classify(err), EventID: eventID, Page: page, Err: err}
	}
	return body, nil
}

func classify(err error) FailureKind {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return FailTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailTimeout
	}
	return FailConnection
}
