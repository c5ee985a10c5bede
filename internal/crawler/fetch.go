package crawler

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sjsage522/specialsworker/helpers"
	"sjsage522/specialsworker/logger"
	"sjsage522/specialsworker/pkg/errors"
	"sjsage522/specialsworker/services/cache"
)

// FetcherConfig contains the settings of a PageFetcher
type FetcherConfig struct {
	Client     *http.Client
	RetryDelay time.Duration

	// Optional rate-limit blocking. While CacheKey is present in CacheSvc, fetches
	// fail without touching the network.
	CacheSvc  cache.CacheService
	CacheKey  string
	BlockTime time.Duration
}

// PageFetcher downloads listing pages, retrying transient failures
type PageFetcher struct {
	FetcherConfig
	wait func(ctx context.Context, d time.Duration) error
	log  *logger.Logger
}

// NewPageFetcher creates a new page fetcher
func NewPageFetcher(config FetcherConfig) *PageFetcher {
	if config.Client == nil {
		config.Client = &http.Client{Timeout: 10 * time.Second}
	}
	return &PageFetcher{
		FetcherConfig: config,
		wait:          sleepContext,
		log:           logger.ForComponent("fetcher"),
	}
}

// Fetch downloads target with identity as User-Agent. Network errors and 5xx answers
// are retried after RetryDelay, up to MaxFetchAttempts attempts in total; any other
// non-2xx answer fails at once. A body that cannot be decoded as text is returned as "".
func (f *PageFetcher) Fetch(ctx context.Context, target string, identity Identity) (string, error) {
	if err := f.checkBlocked(); err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= MaxFetchAttempts; attempt++ {
		body, err := f.attempt(ctx, target, identity)
		if err == nil {
			return body, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !errors.IsRetryable(err) {
			f.log.Debug().Err(err).Str("url", target).Msg("Fetch failed, not retrying")
			return "", err
		}
		if attempt == MaxFetchAttempts {
			break
		}

		f.log.Debug().
			Err(err).
			Str("url", target).
			Int("attempt", attempt).
			Dur("retry_in", f.RetryDelay).
			Msg("Transient fetch failure")
		if err := f.wait(ctx, f.RetryDelay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("giving up on %s after %d attempts: %w", target, MaxFetchAttempts, lastErr)
}

// attempt performs a single GET and classifies the outcome
func (f *PageFetcher) attempt(ctx context.Context, target string, identity Identity) (string, error) {
	resp, err := helpers.Get(ctx, f.Client, target, string(identity))
	if err != nil {
		return "", errors.NewNetwork("fetcher", "request failed", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return "", f.block(resp.Header.Get("Retry-After"))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return "", errors.NewStatus("fetcher", resp.StatusCode)
	}

	data, err := helpers.ReadBody(resp)
	if stderrors.Is(err, helpers.ErrBodyTooLarge) {
		return "", errors.NewParsing("fetcher", "oversized body", err)
	}
	if err != nil {
		return "", errors.NewNetwork("fetcher", "read body", err)
	}

	text, err := helpers.ToUTF8(data, resp.Header.Get("Content-Type"))
	if err != nil {
		f.log.Debug().Err(err).Str("url", target).Msg("Body is not text, treating as empty")
		return "", nil
	}
	return text, nil
}

// checkBlocked fails when a previous 429 set the block key
func (f *PageFetcher) checkBlocked() error {
	if f.CacheSvc == nil || f.CacheKey == "" {
		return nil
	}
	value, err := f.CacheSvc.Get(f.CacheKey)
	if err != nil {
		return nil
	}
	seconds, _ := strconv.Atoi(string(value))
	return errors.NewRateLimit("fetcher", time.Duration(seconds)*time.Second)
}

// block records a rate limit answer and returns the matching error
func (f *PageFetcher) block(retryAfter string) error {
	blockTime := f.BlockTime
	if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds > 0 {
		blockTime = time.Duration(seconds) * time.Second
	}

	if f.CacheSvc != nil && f.CacheKey != "" && blockTime > 0 {
		value := []byte(strconv.Itoa(int(blockTime / time.Second)))
		if err := f.CacheSvc.Set(f.CacheKey, value, blockTime); err != nil {
			f.log.Warn().Err(errors.NewCache("fetcher", "store rate limit block", err)).Msg("Failed to record rate limit")
		}
	}
	return errors.NewRateLimit("fetcher", blockTime)
}

// RateLimitKey builds the cache key blocking requests to the host of siteURL
func RateLimitKey(siteURL string) string {
	host := siteURL
	if u, err := url.Parse(siteURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return "specials_rate_limited:" + host
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
