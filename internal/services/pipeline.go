package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Lllllllleong/detailsheetindex/internal/artifacts"
	"github.com/Lllllllleong/detailsheetindex/internal/models"
	"github.com/Lllllllleong/detailsheetindex/internal/store"
)

// IndexJob is one document's worth of indexing work: the stored page images
// of a single upload, in page order.
type IndexJob struct {
	ProjectID  string
	DocumentID string
	ImagePaths []string
}

// Pipeline consumes index jobs from a queue and drives the per-page
// split-analyze-persist sequence. One worker processes one page at a time,
// strictly in page order, which bounds load on the vision service and makes
// records visible in non-decreasing page-number order.
//
// Failures are isolated per page: a failed analysis writes a terminal error
// record for that page and the loop continues. Given N pages, exactly N
// terminal records are written for the document.
type Pipeline struct {
	records  store.RecordStore
	images   artifacts.Store
	analyzer *PageAnalyzer
	jobs     chan IndexJob
	log      *slog.Logger

	pending *pendingCounts
	done    chan struct{}
}

func NewPipeline(records store.RecordStore, images artifacts.Store, analyzer *PageAnalyzer) *Pipeline {
	return &Pipeline{
		records:  records,
		images:   images,
		analyzer: analyzer,
		jobs:     make(chan IndexJob, 64),
		log:      slog.With("component", "pipeline"),
		pending:  newPendingCounts(),
	}
}

// Start launches the worker loop. It runs until ctx is cancelled, but a job
// already picked up is finished under a detached context: cancelling mid
// document would turn its remaining pages into error records. Queued jobs
// that were never picked up are dropped on shutdown.
func (p *Pipeline) Start(ctx context.Context) {
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		for {
			select {
			case <-ctx.Done():
				return
			case job := <-p.jobs:
				p.process(context.WithoutCancel(ctx), job)
			}
		}
	}()
}

// Wait blocks until the worker has exited, including the drain of any job in
// progress. Call only after the Start ctx is cancelled.
func (p *Pipeline) Wait() {
	<-p.done
}

// Enqueue registers a job and returns immediately. The pages are counted as
// in-flight from this moment so status reporting covers queued work.
func (p *Pipeline) Enqueue(job IndexJob) error {
	p.pending.add(job.ProjectID, len(job.ImagePaths))
	select {
	case p.jobs <- job:
		return nil
	default:
		p.pending.add(job.ProjectID, -len(job.ImagePaths))
		return errors.New("indexing queue is full")
	}
}

// PendingPages reports how many pages of a project are queued or being
// analyzed, i.e. have no terminal record yet.
func (p *Pipeline) PendingPages(projectID string) int {
	return p.pending.get(projectID)
}

func (p *Pipeline) process(ctx context.Context, job IndexJob) {
	logCtx := p.log.With("projectId", job.ProjectID, "documentId", job.DocumentID)
	logCtx.Info("Starting document indexing.", "pageCount", len(job.ImagePaths))

	for i, imagePath := range job.ImagePaths {
		pageNumber := i + 1
		record := p.processPage(ctx, logCtx, job, pageNumber, imagePath)

		if err := p.records.CreateRecord(ctx, record); err != nil {
			// No retry: the page is lost from the index, which only the
			// status endpoint can reveal.
			logCtx.Error("Failed to persist index record.", "pageNumber", pageNumber, "error", err)
		}
		p.pending.add(job.ProjectID, -1)
	}
	logCtx.Info("Document indexing complete.")
}

// processPage produces the terminal record for one page. It never fails:
// analysis errors become error records.
func (p *Pipeline) processPage(ctx context.Context, logCtx *slog.Logger, job IndexJob, pageNumber int, imagePath string) *models.IndexRecord {
	record := &models.IndexRecord{
		ProjectID:       job.ProjectID,
		DocumentID:      job.DocumentID,
		PageNumber:      pageNumber,
		ImagePath:       imagePath,
		SheetTitle:      models.DefaultSheetTitle(pageNumber),
		Details:         []models.Detail{},
		GeneralKeywords: []string{},
		Status:          models.StatusError,
		CreatedAt:       time.Now().UTC(),
	}

	image, err := p.images.Read(ctx, imagePath)
	if err != nil {
		logCtx.Error("Failed to read page image.", "pageNumber", pageNumber, "error", err)
		return record
	}

	analysis, err := p.analyzer.Analyze(ctx, image, pageNumber)
	if err != nil {
		logCtx.Error("Page analysis failed, writing error record.", "pageNumber", pageNumber, "error", err)
		return record
	}
	if analysis.Fallback {
		logCtx.Warn("Page analysis degraded to fallback.", "pageNumber", pageNumber)
	}

	record.SheetTitle = analysis.SheetTitle
	record.DetailCount = analysis.DetailCount
	record.Details = analysis.Details
	record.GeneralKeywords = analysis.GeneralKeywords
	record.OverallSummary = analysis.OverallSummary
	record.SearchIndex = analysis.SearchIndex
	record.Status = models.StatusIndexed
	return record
}
