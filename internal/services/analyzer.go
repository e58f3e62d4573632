package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/detailsheetindex/internal/models"
)

// SheetDescriber is the external vision service boundary. The production
// implementation is gcp.VertexClient.
type SheetDescriber interface {
	DescribeSheet(ctx context.Context, image []byte) (string, error)
}

// PageAnalysis is the structured description of one page. Fallback marks
// analyses synthesized from a response the model failed to structure.
type PageAnalysis struct {
	SheetTitle      string
	DetailCount     int
	Details         []models.Detail
	GeneralKeywords []string
	OverallSummary  string
	SearchIndex     string
	Fallback        bool
}

// analysisPayload is the JSON schema requested from the model. Every field is
// optional; defaults are applied after parsing.
type analysisPayload struct {
	SheetTitle      string          `json:"sheetTitle"`
	DetailCount     int             `json:"detailCount"`
	Details         []detailPayload `json:"details"`
	GeneralKeywords []string        `json:"generalKeywords"`
	OverallSummary  string          `json:"overallSummary"`
}

type detailPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	Location    string   `json:"location"`
}

// summaryLimit caps the summary synthesized for fallback analyses.
const summaryLimit = 200

// PageAnalyzer describes one page image via the vision service and parses the
// response leniently: malformed output degrades into a fallback analysis, it
// never raises. Only transport/service failure is an error.
type PageAnalyzer struct {
	describer SheetDescriber
}

func NewPageAnalyzer(describer SheetDescriber) *PageAnalyzer {
	return &PageAnalyzer{describer: describer}
}

// Analyze returns the analysis for one page. A non-nil error is always a
// *AnalysisError.
func (a *PageAnalyzer) Analyze(ctx context.Context, image []byte, pageNumber int) (*PageAnalysis, error) {
	raw, err := a.describer.DescribeSheet(ctx, image)
	if err != nil {
		return nil, &AnalysisError{PageNumber: pageNumber, Err: err}
	}

	analysis := a.parse(raw, pageNumber)
	analysis.SearchIndex = buildSearchIndex(analysis)
	return analysis, nil
}

func (a *PageAnalyzer) parse(raw string, pageNumber int) *PageAnalysis {
	clean := stripCodeFences(raw)

	var payload analysisPayload
	if clean == "" || json.Unmarshal([]byte(clean), &payload) != nil {
		slog.Warn("Sheet analysis response was not valid JSON, falling back to raw text.", "pageNumber", pageNumber)
		return fallbackAnalysis(raw, pageNumber)
	}

	details := make([]models.Detail, 0, len(payload.Details))
	for _, d := range payload.Details {
		keywords := d.Keywords
		if keywords == nil {
			keywords = []string{}
		}
		details = append(details, models.Detail{
			Title:       d.Title,
			Description: d.Description,
			Keywords:    keywords,
			Location:    models.NormalizeLocation(d.Location),
		})
	}

	analysis := &PageAnalysis{
		SheetTitle:      payload.SheetTitle,
		DetailCount:     payload.DetailCount,
		Details:         details,
		GeneralKeywords: payload.GeneralKeywords,
		OverallSummary:  payload.OverallSummary,
	}
	if analysis.SheetTitle == "" {
		analysis.SheetTitle = models.DefaultSheetTitle(pageNumber)
	}
	if analysis.DetailCount <= 0 {
		if len(details) > 0 {
			analysis.DetailCount = len(details)
		} else {
			analysis.DetailCount = 1
		}
	}
	if analysis.GeneralKeywords == nil {
		analysis.GeneralKeywords = []string{}
	}
	return analysis
}

// fallbackAnalysis wraps an unstructured response into a best-effort analysis.
// This is a deliberate leniency, not a failure path: the record it produces is
// still indexed and searchable by the raw text.
func fallbackAnalysis(raw string, pageNumber int) *PageAnalysis {
	return &PageAnalysis{
		SheetTitle:  models.DefaultSheetTitle(pageNumber),
		DetailCount: 1,
		Details: []models.Detail{{
			Title:       models.DefaultSheetTitle(pageNumber),
			Description: raw,
			Keywords:    []string{},
			Location:    models.LocationFullSheet,
		}},
		GeneralKeywords: []string{},
		OverallSummary:  truncateRunes(raw, summaryLimit),
		Fallback:        true,
	}
}

// stripCodeFences removes surrounding markdown fences the model sometimes
// wraps its JSON in.
func stripCodeFences(raw string) string {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

// buildSearchIndex derives the single lower-cased blob the search engine
// scores: all general keywords, every detail's keywords, title and
// description, then the sheet title and summary. The derivation is
// deterministic and happens exactly once, at analysis time.
func buildSearchIndex(analysis *PageAnalysis) string {
	var parts []string
	parts = append(parts, analysis.GeneralKeywords...)
	for _, d := range analysis.Details {
		parts = append(parts, d.Keywords...)
		parts = append(parts, d.Title, d.Description)
	}
	parts = append(parts, analysis.SheetTitle, analysis.OverallSummary)

	fields := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			fields = append(fields, p)
		}
	}
	return strings.ToLower(strings.Join(fields, " "))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
