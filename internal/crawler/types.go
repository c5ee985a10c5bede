package crawler

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Identity is the client name declared on every request of a crawl
type Identity string

const (
	// SeedIdentity is the first candidate tested against the exclusion policy
	SeedIdentity Identity = "Scrappy"
	// FallbackIdentity is used when no candidate is permitted
	FallbackIdentity Identity = "default-agent"
	// MaxIdentityMutations bounds the candidates derived from the seed
	MaxIdentityMutations = 9
	// MaxFetchAttempts is the total number of attempts for one page, retries included
	MaxFetchAttempts = 10
)

// Deal represents a discounted product found on a listing page
type Deal struct {
	Name            string  `json:"name"`
	OldPrice        float64 `json:"old_price"`
	NewPrice        float64 `json:"new_price"`
	DiscountPercent float64 `json:"discount_percent"`
}

// FragmentResult is the outcome of one product fragment: either a deal or the reason it was skipped
type FragmentResult struct {
	Deal *Deal
	Skip error
}

// FragmentSkip records a fragment that did not yield a deal
type FragmentSkip struct {
	Index  int
	Reason error
}

// ListingPage is what one search results page yielded
type ListingPage struct {
	// Fragments counts every candidate in the results container, parsed or not
	Fragments int
	Deals     []Deal
	Skipped   []FragmentSkip
}

// Selectors contains CSS selectors for the elements of a listing page
type Selectors struct {
	Container     string
	Fragment      string
	DiscountBlock string
	OldPrice      string
	Title         string
}

// DefaultSelectors returns the selectors matching the storefront search results markup
func DefaultSelectors() Selectors {
	return Selectors{
		Container:     "div#search_resultsRows",
		Fragment:      "a",
		DiscountBlock: "div.search_price.discounted",
		OldPrice:      "strike",
		Title:         "span.title",
	}
}

// Session holds the state of one crawl run
type Session struct {
	RunID     string
	Identity  Identity
	Page      int
	StartedAt time.Time

	PagesFetched     int
	DealsReported    int
	FragmentsSkipped int
}

// NewSession starts a crawl session with a fresh run ID
func NewSession() *Session {
	return &Session{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
}

// IdentitySource chooses the identity a crawl runs under
type IdentitySource interface {
	Negotiate(ctx context.Context, baseURL string) Identity
}

// PageSource fetches a listing page as text
type PageSource interface {
	Fetch(ctx context.Context, url string, identity Identity) (string, error)
}

// Reporter receives every deal as soon as it is extracted
type Reporter interface {
	Report(ctx context.Context, session *Session, deal Deal) error
}
