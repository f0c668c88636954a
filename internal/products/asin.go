package products

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var asinPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/dp/([A-Z0-9]{10})`),
	regexp.MustCompile(`/gp/product/([A-Z0-9]{10})`),
	regexp.MustCompile(`[?&]asin=([A-Z0-9]{10})`),
	regexp.MustCompile(`/product/([A-Z0-9]{10})`),
}

var asinFormat = regexp.MustCompile(`^B[0-9A-Z]{9}$`)

// supportedHosts lists marketplace domains a run may target. Subdomains
// (www., smile.) are accepted.
var supportedHosts = []string{
	"amazon.com",
	"amazon.co.uk",
	"amazon.de",
	"amazon.fr",
	"amazon.it",
	"amazon.es",
	"amazon.ca",
	"amazon.co.jp",
}

// ErrUnsupportedURL is returned when a URL does not belong to a supported
// marketplace domain.
var ErrUnsupportedURL = fmt.Errorf("unsupported product URL")

// ExtractASIN derives the product identifier from a marketplace URL.
func ExtractASIN(rawURL string) (string, error) {
	for _, pattern := range asinPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1], nil
		}
	}
	return "", fmt.Errorf("could not extract ASIN from URL: %s", rawURL)
}

// ValidASIN reports whether s looks like a marketplace product identifier.
func ValidASIN(s string) bool {
	return asinFormat.MatchString(s)
}

// ValidateURL checks that rawURL is a well-formed product URL on a supported
// domain and returns the extracted ASIN.
func ValidateURL(rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", ErrUnsupportedURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", ErrUnsupportedURL
	}

	host := strings.ToLower(parsed.Host)
	supported := false
	for _, domain := range supportedHosts {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			supported = true
			break
		}
	}
	if !supported {
		return "", ErrUnsupportedURL
	}

	asin, err := ExtractASIN(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: no product identifier in path", ErrUnsupportedURL)
	}
	return asin, nil
}
