package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/specialsworker/pkg/errors"
)

type fixedIdentity Identity

func (f fixedIdentity) Negotiate(ctx context.Context, baseURL string) Identity {
	return Identity(f)
}

// scriptedPages serves documents by URL and records every request
type scriptedPages struct {
	mu        sync.Mutex
	documents map[string]string
	failures  map[string]error
	requests  []string
	identity  []Identity
}

func (s *scriptedPages) Fetch(ctx context.Context, url string, identity Identity) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, url)
	s.identity = append(s.identity, identity)
	if err, ok := s.failures[url]; ok {
		return "", err
	}
	return s.documents[url], nil
}

func dealTile(name, oldPrice, newPrice string) string {
	return fmt.Sprintf(`<a><span class="title">%s</span><div class="search_price discounted"><strike>%s</strike><br>%s</div></a>`,
		name, oldPrice, newPrice)
}

func resultsPage(tiles ...string) string {
	return `<html><body><div id="search_resultsRows">` + strings.Join(tiles, "") + `</div></body></html>`
}

func newTestDriver(opts Options, pages PageSource, reporter Reporter) (*Driver, *[]time.Duration) {
	driver := NewDriver(opts, fixedIdentity("Scrappy2"), pages, NewDealExtractor(DefaultSelectors()), reporter)
	waits := &[]time.Duration{}
	driver.wait = func(ctx context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return driver, waits
}

const testSite = "https://store.example.com"

func TestPageURL(t *testing.T) {
	assert.Equal(t, "https://store.example.com/search/?specials=1&page=1", PageURL(testSite, 1))
	assert.Equal(t, "https://store.example.com/search/?specials=1&page=12", PageURL(testSite+"/", 12))
}

func TestRunStopsOnEmptyPage(t *testing.T) {
	pages := &scriptedPages{documents: map[string]string{
		PageURL(testSite, 1): resultsPage(dealTile("A", "10,00€", "5,00€"), dealTile("B", "20,00€", "15,00€")),
		PageURL(testSite, 2): resultsPage(dealTile("C", "$40.00", "$10.00")),
		PageURL(testSite, 3): resultsPage(),
	}}
	reporter := &MockReporter{}
	driver, waits := newTestDriver(Options{SiteURL: testSite, MaxPageNumber: 100, PageDelay: 750 * time.Millisecond}, pages, reporter)

	session, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{PageURL(testSite, 1), PageURL(testSite, 2), PageURL(testSite, 3)}, pages.requests)
	assert.Equal(t, []Identity{"Scrappy2", "Scrappy2", "Scrappy2"}, pages.identity)
	assert.Equal(t, []time.Duration{750 * time.Millisecond, 750 * time.Millisecond}, *waits)

	deals := reporter.Deals()
	require.Len(t, deals, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{deals[0].Name, deals[1].Name, deals[2].Name})
	assert.Equal(t, 75.0, deals[2].DiscountPercent)

	assert.Equal(t, Identity("Scrappy2"), session.Identity)
	assert.Equal(t, 3, session.PagesFetched)
	assert.Equal(t, 3, session.DealsReported)
	assert.Equal(t, 3, session.Page)
	assert.NotEmpty(t, session.RunID)
}

func TestRunHonorsMaxPageNumber(t *testing.T) {
	pages := &scriptedPages{documents: map[string]string{
		PageURL(testSite, 1): resultsPage(dealTile("A", "10,00€", "5,00€")),
		PageURL(testSite, 2): resultsPage(dealTile("B", "10,00€", "5,00€")),
	}}
	reporter := &MockReporter{}
	driver, waits := newTestDriver(Options{SiteURL: testSite, MaxPageNumber: 1, PageDelay: time.Second}, pages, reporter)

	_, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, pages.requests, 1)
	assert.Len(t, reporter.Deals(), 1)
	// the politeness delay still follows the last page
	assert.Len(t, *waits, 1)
}

func TestRunEndsOnFetchError(t *testing.T) {
	pages := &scriptedPages{
		documents: map[string]string{
			PageURL(testSite, 1): resultsPage(dealTile("A", "10,00€", "5,00€")),
			PageURL(testSite, 3): resultsPage(dealTile("C", "10,00€", "5,00€")),
		},
		failures: map[string]error{
			PageURL(testSite, 2): errors.NewStatus("fetcher", 404),
		},
	}
	reporter := &MockReporter{}
	driver, _ := newTestDriver(Options{SiteURL: testSite, MaxPageNumber: 10}, pages, reporter)

	session, err := driver.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, pages.requests, 2)
	assert.Len(t, reporter.Deals(), 1)
	assert.Equal(t, 1, session.PagesFetched)
}

func TestRunSkipsUnparsableFragments(t *testing.T) {
	pages := &scriptedPages{documents: map[string]string{
		PageURL(testSite, 1): resultsPage(
			dealTile("A", "10,00€", "5,00€"),
			`<a><span class="title">Not on sale</span><div class="search_price">9,99€</div></a>`,
			dealTile("C", "10,00€", "2,50€"),
		),
	}}
	reporter := &MockReporter{}
	driver, _ := newTestDriver(Options{SiteURL: testSite, MaxPageNumber: 1, Debug: true}, pages, reporter)

	session, err := driver.Run(context.Background())
	require.NoError(t, err)

	deals := reporter.Deals()
	require.Len(t, deals, 2)
	assert.Equal(t, "A", deals[0].Name)
	assert.Equal(t, "C", deals[1].Name)
	assert.Equal(t, 1, session.FragmentsSkipped)
}

func TestRunContinuesAfterReporterError(t *testing.T) {
	pages := &scriptedPages{documents: map[string]string{
		PageURL(testSite, 1): resultsPage(dealTile("A", "10,00€", "5,00€"), dealTile("B", "10,00€", "5,00€")),
	}}
	reporter := &MockReporter{err: fmt.Errorf("sink closed")}
	driver, _ := newTestDriver(Options{SiteURL: testSite, MaxPageNumber: 1}, pages, reporter)

	session, err := driver.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, reporter.Deals(), 2)
	assert.Equal(t, 0, session.DealsReported)
}

func TestRunCancelled(t *testing.T) {
	pages := &scriptedPages{documents: map[string]string{
		PageURL(testSite, 1): resultsPage(dealTile("A", "10,00€", "5,00€")),
		PageURL(testSite, 2): resultsPage(dealTile("B", "10,00€", "5,00€")),
	}}
	reporter := &MockReporter{}
	driver, _ := newTestDriver(Options{SiteURL: testSite, MaxPageNumber: 10}, pages, reporter)

	ctx, cancel := context.WithCancel(context.Background())
	driver.wait = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err := driver.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, pages.requests, 1)
}
