package products

import "sort"

// FieldGroup summarizes presence of one bucket of record fields.
type FieldGroup struct {
	Total   int      `json:"total"`
	Present int      `json:"present"`
	Missing []string `json:"missing,omitempty"`
	Score   float64  `json:"score"`
}

// Completeness is a field-presence breakdown of a record, bucketed by how
// much each field matters to downstream analysis.
type Completeness struct {
	Critical     FieldGroup `json:"critical"`
	Important    FieldGroup `json:"important"`
	Optional     FieldGroup `json:"optional"`
	OverallScore float64    `json:"overallScore"`
}

// Weighting: critical 60%, important 30%, optional 10%.
const (
	criticalWeight  = 0.6
	importantWeight = 0.3
	optionalWeight  = 0.1
)

// ComputeCompleteness returns the field-completeness breakdown for a record.
// Like QualityScore it is a pure function of the record.
func ComputeCompleteness(r Record) Completeness {
	critical := groupOf(map[string]bool{
		"url":   r.URL != "",
		"title": r.Title != "",
		"price": r.Price != nil,
	})
	important := groupOf(map[string]bool{
		"rating":       r.Rating != nil,
		"reviewCount":  r.ReviewCount != nil,
		"availability": r.Availability != "",
		"currency":     r.Currency != "",
	})
	optional := groupOf(map[string]bool{
		"seller":   r.Seller != "",
		"category": r.Category != "",
		"features": len(r.Features) > 0,
		"images":   len(r.Images) > 0,
	})

	return Completeness{
		Critical:     critical,
		Important:    important,
		Optional:     optional,
		OverallScore: critical.Score*criticalWeight + important.Score*importantWeight + optional.Score*optionalWeight,
	}
}

func groupOf(fields map[string]bool) FieldGroup {
	group := FieldGroup{Total: len(fields)}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, name := range keys {
		if fields[name] {
			group.Present++
		} else {
			group.Missing = append(group.Missing, name)
		}
	}
	if group.Total > 0 {
		group.Score = float64(group.Present) / float64(group.Total)
	}
	return group
}
