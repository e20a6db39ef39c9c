package status

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"

	"pavolctl/internal/domain"
)

// DefaultTimeout bounds a status fetch when the caller sets none.
const DefaultTimeout = 5 * time.Second

// maxBodySize caps the status report; real reports are a few hundred KiB at most.
const maxBodySize int64 = 8 << 20

// HTTPFetcher implements domain.StatusFetcher against the server's HTTP status page.
type HTTPFetcher struct {
	client  *http.Client
	timeout time.Duration
	maxBody int64
	logger  *slog.Logger
}

// NewHTTPFetcher creates a fetcher. A nil client uses a fresh http.Client.
func NewHTTPFetcher(client *http.Client, timeout time.Duration, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HTTPFetcher{client: client, timeout: timeout, maxBody: maxBodySize, logger: logger}
}

// StatusURL returns http://host:port/status.
func StatusURL(ep domain.Endpoint) string {
	u := url.URL{Scheme: "http", Host: ep.Addr(), Path: "/status"}
	return u.String()
}

// FetchStatus performs one GET and returns the complete body as text.
// Every failure, including an empty or non-UTF-8 body, is a *domain.FetchError.
func (f *HTTPFetcher) FetchStatus(ctx context.Context, ep domain.Endpoint) (string, error) {
	target := StatusURL(ep)
	fail := func(err error) (string, error) {
		f.logger.Debug("status fetch failed", "url", target, "error", err)
		return "", &domain.FetchError{URL: target, Err: err}
	}

	if err := ep.Validate(); err != nil {
		return fail(err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fail(err)
	}
	req.Header.Set("Accept", "text/plain")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fail(fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return fail(fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > f.maxBody {
		return fail(fmt.Errorf("%w: more than %d bytes", domain.ErrBodyTooLarge, f.maxBody))
	}
	if len(body) == 0 {
		return fail(domain.ErrEmptyBody)
	}
	if !utf8.Valid(body) {
		return fail(domain.ErrInvalidUTF8)
	}

	f.logger.Debug("status fetched", "url", target, "bytes", len(body), "elapsed", time.Since(start))
	return string(body), nil
}
