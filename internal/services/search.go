package services

import (
	"context"
	"sort"
	"strings"

	"github.com/Lllllllleong/detailsheetindex/internal/models"
	"github.com/Lllllllleong/detailsheetindex/internal/store"
)

// maxSearchResults caps every search response.
const maxSearchResults = 20

// SearchEngine ranks indexed records against a free-text query by term
// frequency. Scoring is substring occurrence counting over the stored search
// blob, so "steel" also matches inside "steeled". That matches the archived
// behavior; word-boundary matching would change result sets and is
// intentionally not done here.
type SearchEngine struct {
	records store.RecordStore
}

func NewSearchEngine(records store.RecordStore) *SearchEngine {
	return &SearchEngine{records: records}
}

// Search returns up to 20 results sorted by descending relevance, stable on
// ties. An empty or whitespace-only query returns no results. projectID
// optionally scopes the candidate set; only indexed records are considered.
func (e *SearchEngine) Search(ctx context.Context, query, projectID string) ([]models.SearchResult, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return []models.SearchResult{}, nil
	}

	candidates, err := e.records.ListIndexed(ctx, projectID)
	if err != nil {
		return nil, err
	}

	results := make([]models.SearchResult, 0, len(candidates))
	for _, record := range candidates {
		score := scoreRecord(record.SearchIndex, terms)
		if score == 0 {
			continue
		}
		results = append(results, models.SearchResult{
			IndexRecord:    *record,
			RelevanceScore: score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].RelevanceScore > results[j].RelevanceScore
	})
	if len(results) > maxSearchResults {
		results = results[:maxSearchResults]
	}
	return results, nil
}

// queryTerms splits a query on whitespace into lower-cased non-empty terms.
func queryTerms(query string) []string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, strings.ToLower(f))
	}
	return terms
}

// scoreRecord sums the substring occurrence counts of each term in the blob.
// The blob is stored lower-cased, so matching is case-insensitive.
func scoreRecord(searchIndex string, terms []string) int {
	var score int
	for _, term := range terms {
		score += strings.Count(searchIndex, term)
	}
	return score
}
