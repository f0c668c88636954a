package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"

	"productlens-backend/internal/products"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// maxBodyBytes caps how much of a page we read. Product pages past this point
// are footer and script noise.
const maxBodyBytes = 4 << 20

// HTTPFetcher implements Fetcher against live pages using readability for
// content extraction and pattern matching for structured fields.
type HTTPFetcher struct {
	client    *http.Client
	gate      *Gate
	userAgent string
}

// NewHTTPFetcher constructs an HTTPFetcher sharing the given admission gate.
func NewHTTPFetcher(gate *Gate) *HTTPFetcher {
	return &HTTPFetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		gate:      gate,
		userAgent: defaultUserAgent,
	}
}

var (
	pricePattern = regexp.MustCompile(`(?:\$|£|€|USD\s*|EUR\s*|GBP\s*)([0-9][0-9,]*(?:\.[0-9]{1,2})?)`)
	// "4.6 out of 5 stars"
	ratingPattern = regexp.MustCompile(`([0-5](?:\.[0-9])?)\s*out of 5`)
	// "12,345 ratings" / "12,345 reviews"
	reviewPattern       = regexp.MustCompile(`([0-9][0-9,]*)\s*(?:global\s+)?(?:ratings|reviews)`)
	availabilityPattern = regexp.MustCompile(`(?i)(in stock|out of stock|currently unavailable|only [0-9]+ left in stock)`)
	dpLinkPattern       = regexp.MustCompile(`/dp/([A-Z0-9]{10})`)
)

// FetchProduct extracts a standardized record from a product page.
func (f *HTTPFetcher) FetchProduct(ctx context.Context, url string) (products.Record, error) {
	asin, err := products.ExtractASIN(url)
	if err != nil {
		return products.Record{}, err
	}

	body, err := f.fetch(ctx, url)
	if err != nil {
		return products.Record{}, err
	}

	parsedURL, err := nurl.Parse(url)
	if err != nil {
		return products.Record{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	article, err := readability.FromReader(strings.NewReader(body), parsedURL)
	if err != nil {
		return products.Record{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	text := article.TextContent
	rec := products.Record{
		ASIN:       asin,
		URL:        url,
		Title:      strings.TrimSpace(article.Title),
		SourceKind: products.SourceScraped,
		ScrapedAt:  time.Now().UTC(),
	}

	if m := pricePattern.FindStringSubmatch(text); m != nil {
		if price, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil && price > 0 {
			rec.Price = &price
			rec.Currency = currencyFromSymbol(m[0])
		}
	}
	if m := ratingPattern.FindStringSubmatch(text); m != nil {
		if rating, err := strconv.ParseFloat(m[1], 64); err == nil {
			rec.Rating = &rating
		}
	}
	if m := reviewPattern.FindStringSubmatch(text); m != nil {
		if count, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			rec.ReviewCount = &count
		}
	}
	if m := availabilityPattern.FindString(text); m != "" {
		rec.Availability = strings.TrimSpace(m)
	}

	if !rec.Valid() {
		return products.Record{}, ErrNoProductData
	}
	return rec, nil
}

// DiscoverCompetitors collects competitor candidates from product links on the
// page. Candidates are returned highest confidence first, deduplicated by ASIN.
func (f *HTTPFetcher) DiscoverCompetitors(ctx context.Context, url string, aggressive bool) ([]products.Candidate, error) {
	ownASIN, err := products.ExtractASIN(url)
	if err != nil {
		return nil, err
	}

	body, err := f.fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	base, err := nurl.Parse(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	seen := make(map[string]bool)
	var out []products.Candidate
	for _, m := range dpLinkPattern.FindAllStringSubmatch(body, -1) {
		asin := m[1]
		if asin == ownASIN || seen[asin] {
			continue
		}
		seen[asin] = true

		section := "related_products"
		confidence := 0.6
		if aggressive {
			section = "page_wide_scan"
			confidence = 0.4
		}
		out = append(out, products.Candidate{
			ASIN:            asin,
			URL:             fmt.Sprintf("%s://%s/dp/%s", base.Scheme, base.Host, asin),
			SourceSection:   section,
			ConfidenceScore: confidence,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ConfidenceScore > out[j].ConfidenceScore
	})
	return out, nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) (string, error) {
	if err := f.gate.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return string(body), nil
}

func currencyFromSymbol(matched string) string {
	switch {
	case strings.HasPrefix(matched, "$"), strings.Contains(matched, "USD"):
		return "USD"
	case strings.HasPrefix(matched, "£"), strings.Contains(matched, "GBP"):
		return "GBP"
	case strings.HasPrefix(matched, "€"), strings.Contains(matched, "EUR"):
		return "EUR"
	default:
		return ""
	}
}

var _ Fetcher = (*HTTPFetcher)(nil)
