package crawler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sjsage522/specialsworker/logger"
)

// SearchPathTemplate is the discounted-products listing, paged from 1
const SearchPathTemplate = "/search/?specials=1&page=%d"

// Options controls a crawl
type Options struct {
	SiteURL       string
	MaxPageNumber int
	PageDelay     time.Duration
	Debug         bool
}

// PageURL returns the address of listing page n on site
func PageURL(siteURL string, n int) string {
	return strings.TrimRight(siteURL, "/") + fmt.Sprintf(SearchPathTemplate, n)
}

// Driver walks the listing pages one after another and reports every deal
type Driver struct {
	opts       Options
	identities IdentitySource
	pages      PageSource
	extractor  *DealExtractor
	reporter   Reporter
	wait       func(ctx context.Context, d time.Duration) error
	log        *logger.Logger
}

// NewDriver creates a new crawl driver
func NewDriver(opts Options, identities IdentitySource, pages PageSource, extractor *DealExtractor, reporter Reporter) *Driver {
	if opts.MaxPageNumber < 1 {
		opts.MaxPageNumber = 1
	}
	if extractor == nil {
		extractor = NewDealExtractor(DefaultSelectors())
	}
	return &Driver{
		opts:       opts,
		identities: identities,
		pages:      pages,
		extractor:  extractor,
		reporter:   reporter,
		wait:       sleepContext,
		log:        logger.ForComponent("driver"),
	}
}

// Run performs one crawl. The identity is negotiated once, then pages are fetched
// from 1 until a page is empty or unavailable, at most MaxPageNumber of them.
// Only cancellation of ctx is returned as an error.
func (d *Driver) Run(ctx context.Context) (*Session, error) {
	session := NewSession()
	session.Identity = d.identities.Negotiate(ctx, d.opts.SiteURL)

	log := d.log.WithFields(logger.Fields{
		"run_id":   session.RunID,
		"identity": string(session.Identity),
	})
	log.Info().Str("site", d.opts.SiteURL).Int("max_pages", d.opts.MaxPageNumber).Msg("Crawl started")

	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return session, err
		}
		session.Page = n

		target := PageURL(d.opts.SiteURL, n)
		if d.opts.Debug {
			log.Debug().Int("page", n).Str("url", target).Msg("Fetching listing page")
		}

		document, err := d.pages.Fetch(ctx, target, session.Identity)
		if err != nil {
			if ctx.Err() != nil {
				return session, ctx.Err()
			}
			log.Warn().Err(err).Int("page", n).Msg("Listing page unavailable, ending crawl")
			break
		}
		session.PagesFetched++

		page := d.extractor.Extract(document)
		if page.Fragments == 0 {
			log.Info().Int("page", n).Msg("No more results")
			break
		}

		if d.opts.Debug {
			for _, s := range page.Skipped {
				log.Debug().Int("page", n).Int("fragment", s.Index).Err(s.Reason).Msg("Fragment skipped")
			}
		}
		session.FragmentsSkipped += len(page.Skipped)

		for _, deal := range page.Deals {
			if err := d.reporter.Report(ctx, session, deal); err != nil {
				log.Error().Err(err).Str("deal", deal.Name).Msg("Failed to report deal")
				continue
			}
			session.DealsReported++
		}

		if err := d.wait(ctx, d.opts.PageDelay); err != nil {
			return session, err
		}
		if n >= d.opts.MaxPageNumber {
			log.Info().Int("page", n).Msg("Page limit reached")
			break
		}
	}

	log.Info().
		Int("pages", session.PagesFetched).
		Int("deals", session.DealsReported).
		Int("skipped", session.FragmentsSkipped).
		Dur("elapsed", time.Since(session.StartedAt)).
		Msg("Crawl finished")
	return session, nil
}
