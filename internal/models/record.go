package models

import (
	"fmt"
	"time"
)

// RecordStatus is the terminal outcome of indexing one page. Records are only
// written once their outcome is known, so no pending state is ever persisted.
type RecordStatus string

const (
	StatusIndexed RecordStatus = "indexed"
	StatusError   RecordStatus = "error"
)

// DetailLocation is the coarse placement of a detail on its sheet.
type DetailLocation string

const (
	LocationFullSheet    DetailLocation = "full-sheet"
	LocationTopLeft      DetailLocation = "top-left"
	LocationTopRight     DetailLocation = "top-right"
	LocationTopCenter    DetailLocation = "top-center"
	LocationBottomLeft   DetailLocation = "bottom-left"
	LocationBottomRight  DetailLocation = "bottom-right"
	LocationBottomCenter DetailLocation = "bottom-center"
	LocationCenter       DetailLocation = "center"
	LocationLeft         DetailLocation = "left"
	LocationRight        DetailLocation = "right"
)

var validLocations = map[DetailLocation]bool{
	LocationFullSheet:    true,
	LocationTopLeft:      true,
	LocationTopRight:     true,
	LocationTopCenter:    true,
	LocationBottomLeft:   true,
	LocationBottomRight:  true,
	LocationBottomCenter: true,
	LocationCenter:       true,
	LocationLeft:         true,
	LocationRight:        true,
}

// NormalizeLocation coerces anything outside the fixed enumeration to
// full-sheet. The model output is untrusted, so unknown tags degrade
// rather than fail.
func NormalizeLocation(raw string) DetailLocation {
	loc := DetailLocation(raw)
	if validLocations[loc] {
		return loc
	}
	return LocationFullSheet
}

// Detail is one sub-detail called out on a sheet.
type Detail struct {
	Title       string         `json:"title" firestore:"title"`
	Description string         `json:"description" firestore:"description"`
	Keywords    []string       `json:"keywords" firestore:"keywords"`
	Location    DetailLocation `json:"location" firestore:"location"`
}

// IndexRecord is the persisted analysis of one page of one uploaded document.
// It is immutable once written.
type IndexRecord struct {
	ID              string       `json:"id" firestore:"-"`
	ProjectID       string       `json:"projectId" firestore:"projectId"`
	DocumentID      string       `json:"documentId" firestore:"documentId"`
	PageNumber      int          `json:"pageNumber" firestore:"pageNumber"`
	ImagePath       string       `json:"imagePath" firestore:"imagePath"`
	SheetTitle      string       `json:"sheetTitle" firestore:"sheetTitle"`
	DetailCount     int          `json:"detailCount" firestore:"detailCount"`
	Details         []Detail     `json:"details" firestore:"details"`
	GeneralKeywords []string     `json:"generalKeywords" firestore:"generalKeywords"`
	OverallSummary  string       `json:"overallSummary" firestore:"overallSummary"`
	SearchIndex     string       `json:"searchIndex" firestore:"searchIndex"`
	Status          RecordStatus `json:"status" firestore:"status"`
	CreatedAt       time.Time    `json:"createdAt" firestore:"createdAt"`
}

// DefaultSheetTitle is the title used when the analyzer does not supply one.
func DefaultSheetTitle(pageNumber int) string {
	return fmt.Sprintf("Page %d", pageNumber)
}
