package products

import "time"

// SourceKind records the provenance of a product record.
const (
	SourceScraped     = "scraped"
	SourceLLMInferred = "llm_inferred"
)

// Record is a standardized product data structure, produced either by live
// extraction or by best-effort inference. Downstream consumers treat both
// provenances uniformly.
type Record struct {
	ASIN         string    `json:"asin"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Price        *float64  `json:"price,omitempty"`
	Currency     string    `json:"currency,omitempty"`
	Rating       *float64  `json:"rating,omitempty"`
	ReviewCount  *int      `json:"reviewCount,omitempty"`
	Availability string    `json:"availability,omitempty"`
	Seller       string    `json:"seller,omitempty"`
	Category     string    `json:"category,omitempty"`
	Features     []string  `json:"features,omitempty"`
	Images       []string  `json:"images,omitempty"`
	SourceKind   string    `json:"sourceKind"`
	ScrapedAt    time.Time `json:"scrapedAt,omitempty"`
}

// Candidate is a competitor product discovered but not yet fully scraped.
// Candidates are ordered by ConfidenceScore descending; the top-ranked ones
// are promoted to full extraction.
type Candidate struct {
	ASIN            string   `json:"asin"`
	Title           string   `json:"title"`
	Price           *float64 `json:"price,omitempty"`
	Rating          *float64 `json:"rating,omitempty"`
	ReviewCount     *int     `json:"reviewCount,omitempty"`
	Brand           string   `json:"brand,omitempty"`
	URL             string   `json:"url"`
	SourceSection   string   `json:"sourceSection"`
	ConfidenceScore float64  `json:"confidenceScore"`
}

// Valid reports whether the record carries the minimum required fields.
// Validity gates whether downstream phases may proceed on scraped data.
func (r Record) Valid() bool {
	return r.URL != "" && r.Title != ""
}

// QualityScore returns a deterministic completeness/validity score in [0,1].
// It never mutates the record.
func (r Record) QualityScore() float64 {
	score := 0.0

	// Core identity (0.4)
	if r.URL != "" && r.Title != "" {
		score += 0.4
	}

	// Pricing (0.2)
	if r.Price != nil && *r.Price > 0 {
		score += 0.15
	}
	if r.Currency != "" {
		score += 0.05
	}

	// Rating and reviews (0.2)
	if r.Rating != nil && *r.Rating >= 0 && *r.Rating <= 5 {
		score += 0.1
	}
	if r.ReviewCount != nil && *r.ReviewCount > 0 {
		score += 0.1
	}

	// Descriptive fields (0.2)
	if r.Availability != "" {
		score += 0.05
	}
	if r.Seller != "" {
		score += 0.05
	}
	if r.Category != "" {
		score += 0.05
	}
	if len(r.Features) > 0 {
		score += 0.05
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

// ValidationIssues lists problems with the record, most severe first.
func (r Record) ValidationIssues() []string {
	var issues []string

	if r.URL == "" {
		issues = append(issues, "missing product URL")
	}
	if r.Title == "" {
		issues = append(issues, "missing product title")
	}

	if r.Price == nil {
		issues = append(issues, "missing price information")
	} else if *r.Price <= 0 {
		issues = append(issues, "invalid price (must be positive)")
	}

	if r.Rating != nil && (*r.Rating < 0 || *r.Rating > 5) {
		issues = append(issues, "invalid rating (must be 0-5)")
	}
	if r.ReviewCount != nil && *r.ReviewCount < 0 {
		issues = append(issues, "invalid review count (must be non-negative)")
	}

	if r.Currency == "" && r.Price != nil {
		issues = append(issues, "price provided but currency missing")
	}
	if r.Availability == "" {
		issues = append(issues, "availability status missing")
	}
	if r.Seller == "" {
		issues = append(issues, "seller information missing")
	}
	if r.Category == "" {
		issues = append(issues, "product category missing")
	}
	if len(r.Features) == 0 {
		issues = append(issues, "product features missing")
	}

	return issues
}
