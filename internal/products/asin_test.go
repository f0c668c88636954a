package products

import (
	"errors"
	"testing"
)

func TestExtractASIN(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"dp path", "https://www.amazon.com/dp/B08N5WRWNW", "B08N5WRWNW"},
		{"dp with slug", "https://www.amazon.com/Echo-Dot/dp/B08N5WRWNW/ref=sr_1_1", "B08N5WRWNW"},
		{"gp product", "https://www.amazon.co.uk/gp/product/B07FZ8S74R", "B07FZ8S74R"},
		{"query param", "https://www.amazon.de/something?asin=B01LYCLS24&ref=x", "B01LYCLS24"},
		{"product path", "https://www.amazon.com/product/B0C1234XYZ", "B0C1234XYZ"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ExtractASIN(tc.url)
			if err != nil {
				t.Fatalf("ExtractASIN(%q): %v", tc.url, err)
			}
			if got != tc.want {
				t.Fatalf("ExtractASIN(%q) = %q, want %q", tc.url, got, tc.want)
			}
		})
	}
}

func TestExtractASINNoMatch(t *testing.T) {
	if _, err := ExtractASIN("https://www.amazon.com/gp/bestsellers"); err == nil {
		t.Fatal("expected error for URL without ASIN")
	}
}

func TestValidateURL(t *testing.T) {
	asin, err := ValidateURL("https://www.amazon.com/dp/B08N5WRWNW")
	if err != nil {
		t.Fatalf("ValidateURL: %v", err)
	}
	if asin != "B08N5WRWNW" {
		t.Fatalf("asin = %q, want B08N5WRWNW", asin)
	}
}

func TestValidateURLRejectsUnsupported(t *testing.T) {
	cases := []string{
		"https://www.ebay.com/itm/123",
		"ftp://www.amazon.com/dp/B08N5WRWNW",
		"not a url",
		"https://amazon.com.evil.example/dp/B08N5WRWNW",
		"https://www.amazon.com/gp/help",
	}
	for _, raw := range cases {
		if _, err := ValidateURL(raw); !errors.Is(err, ErrUnsupportedURL) {
			t.Fatalf("ValidateURL(%q) err = %v, want ErrUnsupportedURL", raw, err)
		}
	}
}

func TestValidASIN(t *testing.T) {
	if !ValidASIN("B08N5WRWNW") {
		t.Fatal("expected B08N5WRWNW to be valid")
	}
	if ValidASIN("12345") {
		t.Fatal("expected short string to be invalid")
	}
	if ValidASIN("A08N5WRWNW") {
		t.Fatal("expected non-B prefix to be invalid")
	}
}
