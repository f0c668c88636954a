package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const productPage = `<!DOCTYPE html>
<html><head><title>Acme Wireless Earbuds</title></head>
<body>
<article>
<h1>Acme Wireless Earbuds</h1>
<p>Price: $49.99 with free shipping. Rated 4.6 out of 5 stars from 12,345 ratings. In Stock.</p>
<p>Great sound, long battery life, and a compact charging case make these a solid pick for daily commutes.</p>
</article>
<div id="related">
<a href="/dp/B07FZ8S74R">Rival Buds</a>
<a href="/dp/B01LYCLS24">Budget Buds</a>
<a href="/dp/B08N5WRWNW">Self link</a>
</div>
</body></html>`

func testFetcher(srv *httptest.Server) *HTTPFetcher {
	f := NewHTTPFetcher(NewGate(600, 10))
	f.client = srv.Client()
	return f
}

func TestFetchProduct(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); !strings.Contains(got, "Mozilla") {
			t.Errorf("User-Agent = %q", got)
		}
		_, _ = w.Write([]byte(productPage))
	}))
	t.Cleanup(srv.Close)

	f := testFetcher(srv)
	rec, err := f.FetchProduct(context.Background(), srv.URL+"/dp/B08N5WRWNW")
	if err != nil {
		t.Fatalf("FetchProduct: %v", err)
	}

	if rec.ASIN != "B08N5WRWNW" {
		t.Fatalf("ASIN = %q", rec.ASIN)
	}
	if rec.Title == "" {
		t.Fatal("expected non-empty title")
	}
	if rec.Price == nil || *rec.Price != 49.99 {
		t.Fatalf("Price = %v, want 49.99", rec.Price)
	}
	if rec.Currency != "USD" {
		t.Fatalf("Currency = %q, want USD", rec.Currency)
	}
	if rec.Rating == nil || *rec.Rating != 4.6 {
		t.Fatalf("Rating = %v, want 4.6", rec.Rating)
	}
	if rec.ReviewCount == nil || *rec.ReviewCount != 12345 {
		t.Fatalf("ReviewCount = %v, want 12345", rec.ReviewCount)
	}
	if rec.SourceKind != "scraped" {
		t.Fatalf("SourceKind = %q", rec.SourceKind)
	}
}

func TestFetchProductHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f := testFetcher(srv)
	_, err := f.FetchProduct(context.Background(), srv.URL+"/dp/B08N5WRWNW")
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("err = %v, want ErrFetchFailed", err)
	}
}

func TestDiscoverCompetitorsSkipsOwnASIN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(productPage))
	}))
	t.Cleanup(srv.Close)

	f := testFetcher(srv)
	candidates, err := f.DiscoverCompetitors(context.Background(), srv.URL+"/dp/B08N5WRWNW", false)
	if err != nil {
		t.Fatalf("DiscoverCompetitors: %v", err)
	}
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	for _, c := range candidates {
		if c.ASIN == "B08N5WRWNW" {
			t.Fatal("own ASIN returned as competitor")
		}
		if c.SourceSection != "related_products" {
			t.Fatalf("SourceSection = %q", c.SourceSection)
		}
	}
}

func TestDiscoverCompetitorsAggressiveLowersConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(productPage))
	}))
	t.Cleanup(srv.Close)

	f := testFetcher(srv)
	candidates, err := f.DiscoverCompetitors(context.Background(), srv.URL+"/dp/B08N5WRWNW", true)
	if err != nil {
		t.Fatalf("DiscoverCompetitors: %v", err)
	}
	if len(candidates) == 0 {
		t.Fatal("expected candidates")
	}
	for _, c := range candidates {
		if c.ConfidenceScore != 0.4 {
			t.Fatalf("ConfidenceScore = %v, want 0.4 in aggressive mode", c.ConfidenceScore)
		}
	}
}

func TestGateRespectsContextCancel(t *testing.T) {
	gate := NewGate(1, 1)
	// drain the single burst token
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("first Wait: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gate.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
