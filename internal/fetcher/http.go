package fetcher

import (
	"context"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// BaseBackoff is the first retry delay; it doubles per attempt up to MaxBackoff.
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// HostRates caps requests per second per host. Hosts not listed share DefaultRate.
	HostRates   map[string]rate.Limit
	DefaultRate rate.Limit
}

// HTTPFetcher downloads over net/http with per-host rate limits and retries
// on transport errors, 429 and 5xx responses.
type HTTPFetcher struct {
	client *http.Client
	opts   HTTPOptions

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHTTPFetcher creates a new HTTPFetcher with the given options.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.BaseBackoff == 0 {
		opts.BaseBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff == 0 {
		opts.MaxBackoff = 10 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tqgap/1.0"
	}
	if opts.DefaultRate == 0 {
		opts.DefaultRate = 20
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 8,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: make(map[string]*rate.Limiter),
	}
}

// limiter returns the host's limiter, creating it on first use.
func (f *HTTPFetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		r, ok := f.opts.HostRates[host]
		if !ok {
			r = f.opts.DefaultRate
		}
		l = rate.NewLimiter(r, max(int(r), 1))
		f.limiters[host] = l
	}
	return l
}

// throttle halves a host's rate after a 429, never below one request every four seconds.
func (f *HTTPFetcher) throttle(host string) {
	l := f.limiter(host)
	next := max(l.Limit()/2, rate.Every(4*time.Second))
	l.SetLimit(next)
	zap.L().Warn("fetcher: throttling host after 429", zap.String("host", host), zap.Float64("rate", float64(next)))
}

// Download fetches rawURL and returns the response body.
// A 404 response yields an error wrapping ErrNotFound and is not retried.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		if attempt > 0 {
			if err := sleepCtx(ctx, f.delay(attempt, lastErr)); err != nil {
				return nil, eris.Wrap(err, "fetcher: request cancelled")
			}
		}

		resp, retry, err := f.attempt(ctx, u)
		if err == nil {
			return resp, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
		zap.L().Debug("fetcher: retrying download",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, eris.Wrapf(lastErr, "fetcher: all retries exhausted for %s", rawURL)
}

// retryAfter carries a server-requested delay through the retry loop.
type retryAfter struct {
	err   error
	after time.Duration
}

func (r *retryAfter) Error() string { return r.err.Error() }
func (r *retryAfter) Unwrap() error { return r.err }

// attempt performs one request. retry reports whether a failure is worth repeating.
func (f *HTTPFetcher) attempt(ctx context.Context, u *url.URL) (body io.ReadCloser, retry bool, err error) {
	if err := f.limiter(u.Host).Wait(ctx); err != nil {
		return nil, false, eris.Wrap(err, "fetcher: rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, false, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, eris.Wrap(ctx.Err(), "fetcher: request cancelled")
		}
		return nil, true, eris.Wrap(err, "fetcher: request")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, false, nil
	case resp.StatusCode == http.StatusNotFound:
		_ = resp.Body.Close()
		return nil, false, eris.Wrapf(ErrNotFound, "fetcher: download %s", u)
	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		f.throttle(u.Host)
		return nil, true, &retryAfter{
			err:   eris.Errorf("fetcher: http 429 from %s", u),
			after: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		_ = resp.Body.Close()
		return nil, true, eris.Errorf("fetcher: http %d from %s", resp.StatusCode, u)
	default:
		_ = resp.Body.Close()
		return nil, false, eris.Errorf("fetcher: unexpected status %d from %s", resp.StatusCode, u)
	}
}

// delay is exponential backoff with jitter, or the server's Retry-After when larger.
func (f *HTTPFetcher) delay(attempt int, lastErr error) time.Duration {
	d := min(f.opts.BaseBackoff<<(attempt-1), f.opts.MaxBackoff)
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	var ra *retryAfter
	if errors.As(lastErr, &ra) && ra.after > d {
		d = min(ra.after, f.opts.MaxBackoff)
	}
	return d
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return max(time.Until(t), 0)
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
