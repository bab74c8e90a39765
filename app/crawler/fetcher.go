package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/lysyi3m/moltdir/app/portal"
)

const DefaultMaxBodyBytes = 2 << 20

type FetcherOptions struct {
	UserAgent    string
	Timeout      time.Duration
	RequestsPerS float64
	Burst        int
	MaxBodyBytes int64
}

// Fetcher performs polite single-attempt GET requests. All requests share one
// token bucket, so the limiter bounds the whole run rather than each worker.
type Fetcher struct {
	httpClient   *http.Client
	limiter      *rate.Limiter
	userAgent    string
	timeout      time.Duration
	maxBodyBytes int64
}

func NewFetcher(httpClient *http.Client, opts FetcherOptions) *Fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	limit := rate.Inf
	if opts.RequestsPerS > 0 {
		limit = rate.Limit(opts.RequestsPerS)
	}

	return &Fetcher{
		httpClient:   httpClient,
		limiter:      rate.NewLimiter(limit, max(1, opts.Burst)),
		userAgent:    opts.UserAgent,
		timeout:      opts.Timeout,
		maxBodyBytes: cmpOr(opts.MaxBodyBytes, DefaultMaxBodyBytes),
	}
}

type Response struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// Get fetches a URL. Any status other than 200 is returned as an error
// wrapping portal.ErrFetchFailure together with the partial response.
func (f *Fetcher) Get(ctx context.Context, url string) (*Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", portal.ErrFetchFailure, err)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", portal.ErrFetchFailure, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/rss+xml,application/json;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", portal.ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	out := &Response{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}

	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("%w: HTTP error: %d %s", portal.ErrFetchFailure, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	out.Body, err = io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes))
	if err != nil {
		return out, fmt.Errorf("%w: failed to read response body: %w", portal.ErrFetchFailure, err)
	}

	return out, nil
}

// Fetch loads the candidate's home page and records the outcome on it.
// Failures are recorded, not returned as fatal: the returned error is only for logging.
func (f *Fetcher) Fetch(ctx context.Context, c *portal.Candidate) error {
	if c.URL == "" {
		c.URL = portal.CanonicalURL(c.Domain)
	}

	resp, err := f.Get(ctx, c.URL)
	if resp != nil {
		c.FinalURL = resp.FinalURL
		c.StatusCode = resp.StatusCode
		c.ContentType = resp.ContentType
		c.Body = resp.Body
	}

	c.FetchStatus = classify(resp, err)
	if err != nil {
		c.FetchError = err.Error()
		c.Body = nil
		slog.Debug("Fetch failed", "domain", c.Domain, "status", c.FetchStatus, "error", err)
	}
	return err
}

func classify(resp *Response, err error) portal.FetchStatus {
	if err == nil {
		return portal.FetchSuccess
	}
	if resp != nil {
		if resp.StatusCode >= 500 {
			return portal.FetchError
		}
		if resp.StatusCode != 0 && resp.StatusCode != http.StatusOK {
			return portal.FetchNoContent
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return portal.FetchTimeout
	}
	return portal.FetchError
}

func cmpOr(v, fallback int64) int64 {
	if v > 0 {
		return v
	}
	return fallback
}
