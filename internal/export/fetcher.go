package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxPayload bounds a single chunk response.
const maxPayload = 20 * 1024 * 1024

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) voxfree"

// FailureKind classifies a failed attempt.
type FailureKind int

const (
	FailNetwork FailureKind = iota
	FailTimeout
	FailHTTP
	FailEmpty
)

// String returns the string representation of the failure kind.
func (k FailureKind) String() string {
	switch k {
	case FailNetwork:
		return "network"
	case FailTimeout:
		return "timeout"
	case FailHTTP:
		return "http-error"
	case FailEmpty:
		return "empty-payload"
	default:
		return "unknown"
	}
}

// AttemptError describes why one fetch attempt failed. Every kind is
// recovered the same way: the next ladder step.
type AttemptError struct {
	Kind   FailureKind
	Status int // HTTP status for FailHTTP
	Err    error
}

func (e *AttemptError) Error() string {
	switch e.Kind {
	case FailHTTP:
		return fmt.Sprintf("http-error: status %d", e.Status)
	case FailEmpty:
		return "empty-payload: response body was empty"
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Kind, e.Err)
		}
		return e.Kind.String()
	}
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Fetcher retrieves the body at url. Failures should be reported as an
// *AttemptError; the pipeline treats any other error as a network failure
// unless ctx itself was canceled.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPFetcher issues GET requests with a per-attempt timeout.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTPFetcher creates a fetcher. A nil client uses http.DefaultClient.
func NewHTTPFetcher(client *http.Client, timeout time.Duration) *HTTPFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPFetcher{client: client, timeout: timeout}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	attemptCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &AttemptError{Kind: FailNetwork, Err: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "audio/mpeg, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &AttemptError{Kind: FailHTTP, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, f.classify(ctx, err)
	}
	if len(body) == 0 {
		return nil, &AttemptError{Kind: FailEmpty}
	}
	return body, nil
}

// classify separates the caller giving up from the attempt failing.
func (f *HTTPFetcher) classify(parent context.Context, err error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &AttemptError{Kind: FailTimeout, Err: fmt.Errorf("no response within %s", f.timeout)}
	}
	var ne interface{ Timeout() bool }
	if errors.As(err, &ne) && ne.Timeout() {
		return &AttemptError{Kind: FailTimeout, Err: err}
	}
	return &AttemptError{Kind: FailNetwork, Err: err}
}
