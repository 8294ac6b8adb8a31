package discovery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultMonthURLTemplate is the public month listing URL. {year} and
// {month} are replaced with the four-digit year and zero-padded month.
const DefaultMonthURLTemplate = "https://www.abc.net.au/rage/playlists/archive/{year}/{month}"

// FetchConfig configures HTTPFetcher.
type FetchConfig struct {
	MonthURLTemplate     string        `yaml:"month_url_template"`
	UserAgent            string        `yaml:"user_agent"`
	Timeout              time.Duration `yaml:"timeout"`
	MaxRetries           int           `yaml:"max_retries"`
	RetryInitialInterval time.Duration `yaml:"retry_initial_interval"`
	// RequestsPerSecond paces all requests; zero or less disables pacing.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DefaultFetchConfig returns polite defaults for the public archive.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		MonthURLTemplate:     DefaultMonthURLTemplate,
		UserAgent:            "rageplaylists/1.0 (playlist archiver)",
		Timeout:              30 * time.Second,
		MaxRetries:           3,
		RetryInitialInterval: 500 * time.Millisecond,
		RequestsPerSecond:    1,
	}
}

// StatusError is a non-200 HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %d %s (%s)", e.Code, http.StatusText(e.Code), e.URL)
}

// retryable reports whether the status is worth another attempt.
func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// HTTPFetcher fetches listing and playlist pages over HTTP with retries and
// request pacing.
type HTTPFetcher struct {
	config  FetchConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewHTTPFetcher creates a fetcher. logger may be nil.
func NewHTTPFetcher(config FetchConfig, logger *zap.Logger) *HTTPFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MonthURLTemplate == "" {
		config.MonthURLTemplate = DefaultMonthURLTemplate
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultFetchConfig().Timeout
	}
	if config.RetryInitialInterval <= 0 {
		config.RetryInitialInterval = DefaultFetchConfig().RetryInitialInterval
	}

	limit := rate.Inf
	if config.RequestsPerSecond > 0 {
		limit = rate.Limit(config.RequestsPerSecond)
	}

	return &HTTPFetcher{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// MonthURL returns the listing URL for a month.
func (f *HTTPFetcher) MonthURL(year int, month time.Month) string {
	return strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{month}", fmt.Sprintf("%02d", int(month)),
	).Replace(f.config.MonthURLTemplate)
}

// FetchMonth implements MonthFetcher. A 404 means the archive has no
// listing for that month yet and is returned as an empty page.
func (f *HTTPFetcher) FetchMonth(ctx context.Context, year int, month time.Month) ([]byte, error) {
	body, err := f.get(ctx, f.MonthURL(year, month))
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return []byte{}, nil
		}
		return nil, err
	}
	return body, nil
}

// FetchPage implements PageFetcher.
func (f *HTTPFetcher) FetchPage(ctx context.Context, url string) ([]byte, error) {
	return f.get(ctx, url)
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	operation := func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", f.config.UserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

		resp, err := f.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to fetch URL: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			statusErr := &StatusError{URL: url, Code: resp.StatusCode}
			if statusErr.retryable() {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.config.RetryInitialInterval

	retries := f.config.MaxRetries
	if retries < 0 {
		retries = 0
	}

	err := backoff.RetryNotify(
		operation,
		backoff.WithContext(backoff.WithMaxRetries(policy, uint64(retries)), ctx),
		func(err error, wait time.Duration) {
			f.logger.Warn("retrying fetch", zap.String("url", url), zap.Duration("wait", wait), zap.Error(err))
		},
	)
	if err != nil {
		return nil, err
	}

	return body, nil
}
