package products

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// UpsertProduct inserts or replaces the product row keyed by ASIN.
func (r *PGRepo) UpsertProduct(ctx context.Context, record Record) error {
	const query = `
INSERT INTO products (
	asin, url, title, price, currency, rating, review_count, availability,
	seller, category, features, images, source_kind, quality_score, scraped_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
ON CONFLICT (asin) DO UPDATE SET
	url = EXCLUDED.url,
	title = EXCLUDED.title,
	price = EXCLUDED.price,
	currency = EXCLUDED.currency,
	rating = EXCLUDED.rating,
	review_count = EXCLUDED.review_count,
	availability = EXCLUDED.availability,
	seller = EXCLUDED.seller,
	category = EXCLUDED.category,
	features = EXCLUDED.features,
	images = EXCLUDED.images,
	source_kind = EXCLUDED.source_kind,
	quality_score = EXCLUDED.quality_score,
	scraped_at = EXCLUDED.scraped_at`

	features, err := marshalJSONArray(record.Features)
	if err != nil {
		return err
	}
	images, err := marshalJSONArray(record.Images)
	if err != nil {
		return err
	}

	_, err = r.DB.ExecContext(ctx, query,
		record.ASIN,
		record.URL,
		record.Title,
		record.Price,
		nullString(record.Currency),
		record.Rating,
		record.ReviewCount,
		nullString(record.Availability),
		nullString(record.Seller),
		nullString(record.Category),
		features,
		images,
		record.SourceKind,
		record.QualityScore(),
		record.ScrapedAt,
	)
	return err
}

// GetProduct returns a product by ASIN.
func (r *PGRepo) GetProduct(ctx context.Context, asin string) (Record, error) {
	const query = `
SELECT asin, url, title, price, currency, rating, review_count, availability,
       seller, category, features, images, source_kind, scraped_at
FROM products
WHERE asin = $1
LIMIT 1`

	var rec Record
	var currency sql.NullString
	var availability sql.NullString
	var seller sql.NullString
	var category sql.NullString
	var features sql.NullString
	var images sql.NullString
	err := r.DB.QueryRowContext(ctx, query, asin).Scan(
		&rec.ASIN,
		&rec.URL,
		&rec.Title,
		&rec.Price,
		&currency,
		&rec.Rating,
		&rec.ReviewCount,
		&availability,
		&seller,
		&category,
		&features,
		&images,
		&rec.SourceKind,
		&rec.ScrapedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	if currency.Valid {
		rec.Currency = currency.String
	}
	if availability.Valid {
		rec.Availability = availability.String
	}
	if seller.Valid {
		rec.Seller = seller.String
	}
	if category.Valid {
		rec.Category = category.String
	}
	if features.Valid {
		_ = json.Unmarshal([]byte(features.String), &rec.Features)
	}
	if images.Valid {
		_ = json.Unmarshal([]byte(images.String), &rec.Images)
	}
	return rec, nil
}

// UpsertCompetitors inserts or replaces candidate rows keyed by
// (main_asin, competitor_asin). Candidates without an ASIN are skipped.
func (r *PGRepo) UpsertCompetitors(ctx context.Context, mainASIN string, candidates []Candidate) error {
	const query = `
INSERT INTO competitors (
	main_asin, competitor_asin, title, price, rating, review_count,
	brand, url, source_section, confidence_score, discovered_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
ON CONFLICT (main_asin, competitor_asin) DO UPDATE SET
	title = EXCLUDED.title,
	price = EXCLUDED.price,
	rating = EXCLUDED.rating,
	review_count = EXCLUDED.review_count,
	brand = EXCLUDED.brand,
	url = EXCLUDED.url,
	source_section = EXCLUDED.source_section,
	confidence_score = EXCLUDED.confidence_score`

	for _, candidate := range candidates {
		if candidate.ASIN == "" {
			continue
		}
		_, err := r.DB.ExecContext(ctx, query,
			mainASIN,
			candidate.ASIN,
			candidate.Title,
			candidate.Price,
			candidate.Rating,
			candidate.ReviewCount,
			nullString(candidate.Brand),
			candidate.URL,
			candidate.SourceSection,
			candidate.ConfidenceScore,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListCompetitors returns candidates for a main product, highest confidence first.
func (r *PGRepo) ListCompetitors(ctx context.Context, mainASIN string) ([]Candidate, error) {
	const query = `
SELECT competitor_asin, title, price, rating, review_count, brand, url,
       source_section, confidence_score
FROM competitors
WHERE main_asin = $1
ORDER BY confidence_score DESC, competitor_asin ASC`

	rows, err := r.DB.QueryContext(ctx, query, mainASIN)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var brand sql.NullString
		if err := rows.Scan(
			&c.ASIN,
			&c.Title,
			&c.Price,
			&c.Rating,
			&c.ReviewCount,
			&brand,
			&c.URL,
			&c.SourceSection,
			&c.ConfidenceScore,
		); err != nil {
			return nil, err
		}
		if brand.Valid {
			c.Brand = brand.String
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)

func marshalJSONArray(values []string) ([]byte, error) {
	if values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(values)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
