package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"

	"github.com/sells-group/blog-pipeline/internal/resilience"
)

// maxBodyBytes caps how much of a page is read.
const maxBodyBytes = 8 << 20

// AdaptiveLimiter wraps a rate.Limiter that slows down after a 429 and
// recovers on success, never outside [initial/4, initial*2].
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an AdaptiveLimiter.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows a request.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess raises the rate by 20%.
func (a *AdaptiveLimiter) OnSuccess() { a.adjust(1.2) }

// OnRateLimit halves the rate.
func (a *AdaptiveLimiter) OnRateLimit() { a.adjust(0.5) }

func (a *AdaptiveLimiter) adjust(factor float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	next := min(max(a.currentRate*rate.Limit(factor), a.initialRate/4), a.initialRate*2)
	a.currentRate = next
	a.limiter.SetLimit(next)
}

// Limit returns the current rate.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// statusError is a non-2xx response.
type statusError struct {
	url    string
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ingest: http %d %s from %s", e.status, http.StatusText(e.status), e.url)
}

// httpClient fetches pages with a per-host adaptive rate limit and retries
// on 429, 5xx and network errors.
type httpClient struct {
	client    *http.Client
	userAgent string
	rps       rate.Limit
	retry     resilience.RetryConfig

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

func newHTTPClient(opts Options) *httpClient {
	return &httpClient{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: opts.UserAgent,
		rps:       rate.Limit(opts.RequestsPerSecond),
		retry:     opts.Retry,
		limiters:  make(map[string]*AdaptiveLimiter),
	}
}

func (c *httpClient) limiterFor(host string) *AdaptiveLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(c.rps, 1)
		c.limiters[host] = lim
	}
	return lim
}

// get returns the body of rawURL decoded to UTF-8.
func (c *httpClient) get(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", eris.Errorf("ingest: invalid url %q", rawURL)
	}
	lim := c.limiterFor(u.Host)

	retry := c.retry
	retry.OnRetry = func(attempt int, err error) {
		zap.L().Warn("ingest: retrying request",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return resilience.DoVal(ctx, retry, func(ctx context.Context) (string, error) {
		if err := lim.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "ingest: rate limiter wait")
		}
		body, err := c.fetch(ctx, rawURL)
		var se *statusError
		switch {
		case err == nil:
			lim.OnSuccess()
		case errors.As(err, &se) && se.status == http.StatusTooManyRequests:
			lim.OnRateLimit()
		}
		return body, err
	})
}

func (c *httpClient) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "ingest: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept-Language", "ko,en;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", eris.Wrapf(err, "ingest: fetch %s", rawURL)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", resilience.WrapHTTPStatus(&statusError{url: rawURL, status: resp.StatusCode}, resp.StatusCode)
	}

	r, err := decodeCharset(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", eris.Wrap(err, "ingest: read body")
	}
	return string(body), nil
}

// decodeCharset converts r to UTF-8 using the charset of contentType.
func decodeCharset(r io.Reader, contentType string) (io.Reader, error) {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return r, nil
	}
	charset := strings.ToLower(params["charset"])
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return r, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: unsupported charset %q", charset)
	}
	return enc.NewDecoder().Reader(r), nil
}
