package crawler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sjsage522/specialsworker/pkg/errors"
)

// priceRegex matches a number followed or preceded by a currency symbol ("12,50€", "$12.50")
var priceRegex = regexp.MustCompile(`[0-9][0-9.,]*\s*\p{Sc}|\p{Sc}\s*[0-9][0-9.,]*`)

// DealExtractor pulls deals out of a search results page
type DealExtractor struct {
	Selectors Selectors
}

// NewDealExtractor creates an extractor; zero-value selectors fall back to DefaultSelectors
func NewDealExtractor(selectors Selectors) *DealExtractor {
	defaults := DefaultSelectors()
	if selectors.Container == "" {
		selectors.Container = defaults.Container
	}
	if selectors.Fragment == "" {
		selectors.Fragment = defaults.Fragment
	}
	if selectors.DiscountBlock == "" {
		selectors.DiscountBlock = defaults.DiscountBlock
	}
	if selectors.OldPrice == "" {
		selectors.OldPrice = defaults.OldPrice
	}
	if selectors.Title == "" {
		selectors.Title = defaults.Title
	}
	return &DealExtractor{Selectors: selectors}
}

// Extract parses document and returns its deals in document order. An empty or
// unparsable document, or one without a results container, has zero fragments.
func (e *DealExtractor) Extract(document string) ListingPage {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return ListingPage{}
	}
	return e.ExtractDocument(doc)
}

// ExtractDocument is Extract on an already parsed document
func (e *DealExtractor) ExtractDocument(doc *goquery.Document) ListingPage {
	var page ListingPage

	container := doc.Find(e.Selectors.Container).First()
	if container.Length() == 0 {
		return page
	}

	fragments := container.Find(e.Selectors.Fragment)
	page.Fragments = fragments.Length()

	fragments.Each(func(i int, s *goquery.Selection) {
		result := e.ExtractFragment(s)
		if result.Skip != nil {
			page.Skipped = append(page.Skipped, FragmentSkip{Index: i, Reason: result.Skip})
			return
		}
		page.Deals = append(page.Deals, *result.Deal)
	})

	return page
}

// ExtractFragment reads one product tile
func (e *DealExtractor) ExtractFragment(s *goquery.Selection) FragmentResult {
	block := s.Find(e.Selectors.DiscountBlock).First()
	if block.Length() == 0 {
		return skip("discount block not found", nil)
	}

	lines := lineSegments(block)
	if len(lines) < 2 {
		return skip("new price line not found", nil)
	}
	newPrice, err := ParsePrice(lines[1])
	if err != nil {
		return skip("new price", err)
	}

	oldSel := block.Find(e.Selectors.OldPrice).First()
	if oldSel.Length() == 0 {
		return skip("old price not found", nil)
	}
	oldPrice, err := ParsePrice(oldSel.Text())
	if err != nil {
		return skip("old price", err)
	}
	if oldPrice <= 0 {
		return skip(fmt.Sprintf("old price must be positive (got %v)", oldPrice), nil)
	}

	titleSel := s.Find(e.Selectors.Title).First()
	if titleSel.Length() == 0 {
		return skip("title not found", nil)
	}
	name := strings.TrimSpace(titleSel.Text())
	if name == "" {
		return skip("title is empty", nil)
	}

	return FragmentResult{Deal: &Deal{
		Name:            name,
		OldPrice:        oldPrice,
		NewPrice:        newPrice,
		DiscountPercent: Discount(oldPrice, newPrice),
	}}
}

func skip(message string, err error) FragmentResult {
	return FragmentResult{Skip: errors.NewParsing("extractor", message, err)}
}

// ParsePrice turns a price label into a number. A label made only of dashes is the
// placeholder for zero; other dashes stand for zero digits ("12,--€").
func ParsePrice(raw string) (float64, error) {
	text := strings.TrimSpace(raw)
	if text != "" && strings.Trim(text, "-") == "" {
		return 0, nil
	}
	text = strings.ReplaceAll(text, "-", "0")

	token := priceRegex.FindString(text)
	if token == "" {
		return 0, fmt.Errorf("no price in %q", raw)
	}

	number := strings.TrimFunc(token, func(r rune) bool {
		return unicode.Is(unicode.Sc, r) || unicode.IsSpace(r)
	})

	value, err := strconv.ParseFloat(normalizeDecimal(number), 64)
	if err != nil {
		return 0, fmt.Errorf("bad price %q: %w", raw, err)
	}
	return value, nil
}

// normalizeDecimal makes the decimal separator a period. When both separators appear
// the rightmost one is the decimal separator and the other groups thousands.
func normalizeDecimal(number string) string {
	lastComma := strings.LastIndex(number, ",")
	lastPeriod := strings.LastIndex(number, ".")

	switch {
	case lastComma >= 0 && lastPeriod >= 0 && lastComma > lastPeriod:
		number = strings.ReplaceAll(number, ".", "")
		return strings.Replace(number, ",", ".", 1)
	case lastComma >= 0 && lastPeriod >= 0:
		return strings.ReplaceAll(number, ",", "")
	default:
		return strings.ReplaceAll(number, ",", ".")
	}
}

// lineSegments splits the text of s at <br> elements
func lineSegments(s *goquery.Selection) []string {
	segments := []string{""}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			segments[len(segments)-1] += n.Data
		case n.Type == html.ElementNode && n.Data == "br":
			segments = append(segments, "")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	for i := range segments {
		segments[i] = strings.TrimSpace(segments[i])
	}
	return segments
}
