// Package fetcher provides the shared HTTP client used by all collectors:
// one User-Agent, per-host politeness pacing, and a single fixed-backoff
// retry for transient failures.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/saashunter/hunter/internal/config"
	"github.com/saashunter/hunter/internal/resilience"
)

// Fetcher issues GET requests against external APIs and feeds.
type Fetcher struct {
	client    *http.Client
	userAgent string
	retry     resilience.RetryConfig
	limiters  map[string]*rate.Limiter
	fallback  *rate.Limiter
}

// New builds a Fetcher from the HTTP configuration. The per-host limiters
// replace the fixed sleeps between sequential calls to the same API: each
// host gets one request per configured delay interval, with no burst.
func New(cfg config.HTTPConfig) *Fetcher {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = 1.0
	}
	perHost := rate.Limit(1.0 / delay)

	retry := resilience.DefaultRetryConfig()
	if cfg.MaxRetries > 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}

	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: cfg.UserAgent,
		retry:     retry,
		limiters:  make(map[string]*rate.Limiter),
		fallback:  rate.NewLimiter(perHost, 1),
	}
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	if lim, ok := f.limiters[host]; ok {
		return lim
	}
	lim := rate.NewLimiter(f.fallback.Limit(), 1)
	f.limiters[host] = lim
	return lim
}

// Get fetches rawURL and returns the response body. Extra headers (auth
// tokens, Accept) are applied to the request. Non-2xx responses become
// errors; 408/429/5xx are marked transient so the retry layer reattempts
// them once before the caller skips the unit.
func (f *Fetcher) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", rawURL)
	}

	return resilience.DoVal(ctx, withLogging(f.retry, u.Host), func(ctx context.Context) ([]byte, error) {
		if err := f.limiterFor(u.Host).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetch: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrap(err, "fetch: create request")
		}
		req.Header.Set("User-Agent", f.userAgent)
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: %s", rawURL)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			err := eris.Errorf("fetch: http %d from %s", resp.StatusCode, rawURL)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: read body from %s", rawURL)
		}
		return body, nil
	})
}

func withLogging(cfg resilience.RetryConfig, host string) resilience.RetryConfig {
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Warn("transient fetch failure, retrying",
			zap.String("host", host),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return cfg
}
