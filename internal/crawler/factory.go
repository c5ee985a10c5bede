package crawler

import (
	"sjsage522/specialsworker/config"
	"sjsage522/specialsworker/helpers"
	"sjsage522/specialsworker/internal"
	"sjsage522/specialsworker/pkg/errors"
)

// CreateDriver wires a crawl driver from the configuration. Deals go to reporter.
func CreateDriver(cfg *config.Config, deps internal.Dependencies, reporter Reporter) (*Driver, error) {
	client, err := helpers.NewClient(cfg.RequestTimeout, cfg.ProxyURL)
	if err != nil {
		return nil, errors.NewConfiguration("build http client", err)
	}

	fetcher := NewPageFetcher(FetcherConfig{
		Client:     client,
		RetryDelay: cfg.RetryDelay,
		CacheSvc:   deps.Cache,
		CacheKey:   RateLimitKey(cfg.SiteURL),
		BlockTime:  cfg.RateLimitBlock,
	})

	opts := Options{
		SiteURL:       cfg.SiteURL,
		MaxPageNumber: cfg.MaxPageNumber,
		PageDelay:     cfg.PageDelay,
		Debug:         cfg.Debug,
	}

	return NewDriver(opts, NewIdentityNegotiator(client), fetcher, NewDealExtractor(DefaultSelectors()), reporter), nil
}
