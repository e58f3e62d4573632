package services

import (
	"context"

	"github.com/Lllllllleong/detailsheetindex/internal/models"
	"github.com/Lllllllleong/detailsheetindex/internal/store"
)

// PendingReporter exposes the pipeline's in-flight page counts.
type PendingReporter interface {
	PendingPages(projectID string) int
}

// StatusTracker derives aggregate indexing progress for a project. Terminal
// counts come from the record store; the processing count comes from the
// pipeline's expected page totals registered at enqueue time, so the total is
// accurate while a document is still being analyzed. After a process restart
// the pending counts are empty and the total degrades to indexed + errors
// until the in-flight documents would have finished anyway.
type StatusTracker struct {
	records store.RecordStore
	pending PendingReporter
}

func NewStatusTracker(records store.RecordStore, pending PendingReporter) *StatusTracker {
	return &StatusTracker{records: records, pending: pending}
}

// Status reports total/indexed/errors/processing for one project, where
// total = indexed + errors + processing always holds.
func (t *StatusTracker) Status(ctx context.Context, projectID string) (*models.ProjectStatus, error) {
	indexed, errored, err := t.records.CountByStatus(ctx, projectID)
	if err != nil {
		return nil, err
	}
	processing := t.pending.PendingPages(projectID)
	return &models.ProjectStatus{
		Total:      indexed + errored + processing,
		Indexed:    indexed,
		Errors:     errored,
		Processing: processing,
	}, nil
}
