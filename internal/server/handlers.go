package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/detailsheetindex/internal/artifacts"
	"github.com/Lllllllleong/detailsheetindex/internal/models"
	"github.com/Lllllllleong/detailsheetindex/internal/services"
	"github.com/Lllllllleong/detailsheetindex/internal/store"
)

// uploadField is the multipart form field holding the document file.
const uploadField = "document"

// Splitter renders an uploaded document into ordered page images.
type Splitter interface {
	Split(ctx context.Context, documentPath, outDir string) ([]string, error)
}

// Indexer accepts index jobs for background processing.
type Indexer interface {
	Enqueue(job services.IndexJob) error
}

// Handler carries the dependencies of all API endpoints.
type Handler struct {
	log      *slog.Logger
	store    store.Store
	images   artifacts.Store
	splitter Splitter
	indexer  Indexer
	search   *services.SearchEngine
	status   *services.StatusTracker
}

func NewHandler(st store.Store, images artifacts.Store, splitter Splitter, indexer Indexer, search *services.SearchEngine, status *services.StatusTracker) *Handler {
	return &Handler{
		log:      slog.With("component", "handler"),
		store:    st,
		images:   images,
		splitter: splitter,
		indexer:  indexer,
		search:   search,
		status:   status,
	}
}

func HealthCheck(c *gin.Context) {
	RespondOK(c, gin.H{"status": "ok"})
}

// GET /api/projects
func (h *Handler) ListProjects(c *gin.Context) {
	projects, err := h.store.ListProjects(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_projects_failed", err)
		return
	}
	if projects == nil {
		projects = []*models.Project{}
	}
	RespondOK(c, projects)
}

// POST /api/projects
func (h *Handler) CreateProject(c *gin.Context) {
	var req models.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("name is required"))
		return
	}
	project := &models.Project{
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.store.CreateProject(c.Request.Context(), project); err != nil {
		RespondError(c, http.StatusInternalServerError, "create_project_failed", err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// DELETE /api/projects/:id
//
// Cascades: every index record of the project and every page image those
// records reference are removed. No orphan images remain.
func (h *Handler) DeleteProject(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("id")

	if _, err := h.store.GetProject(ctx, projectID); err != nil {
		h.respondStoreError(c, err)
		return
	}

	records, err := h.store.ListByProject(ctx, projectID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_project_failed", err)
		return
	}

	documentIDs := make(map[string]bool)
	for _, r := range records {
		documentIDs[r.DocumentID] = true
	}
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for documentID := range documentIDs {
		eg.Go(func() error {
			return h.images.DeleteDocument(gctx, documentID)
		})
	}
	if err := eg.Wait(); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_images_failed", err)
		return
	}

	if err := h.store.DeleteByProject(ctx, projectID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_project_failed", err)
		return
	}
	if err := h.store.DeleteProject(ctx, projectID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_project_failed", err)
		return
	}
	RespondOK(c, gin.H{"ok": true})
}

// POST /api/projects/:id/upload
//
// Splitting runs synchronously; analysis does not. The response is sent as
// soon as the page images exist and the job is queued.
func (h *Handler) UploadDocument(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("id")
	logCtx := h.log.With("projectId", projectID)

	if _, err := h.store.GetProject(ctx, projectID); err != nil {
		h.respondStoreError(c, err)
		return
	}

	fileHeader, err := c.FormFile(uploadField)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", errors.New("no document file uploaded"))
		return
	}
	if !isPDF(fileHeader.Header.Get("Content-Type"), fileHeader.Filename) {
		RespondError(c, http.StatusBadRequest, "unsupported_type", errors.New("only PDF documents are accepted"))
		return
	}

	documentID := uuid.NewString()
	logCtx = logCtx.With("documentId", documentID)

	tempDir, err := os.MkdirTemp("", "sheet-upload-*")
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}
	defer os.RemoveAll(tempDir)

	documentPath := filepath.Join(tempDir, "source.pdf")
	if err := c.SaveUploadedFile(fileHeader, documentPath); err != nil {
		RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}

	pagePaths, err := h.splitter.Split(ctx, documentPath, filepath.Join(tempDir, "pages"))
	if err != nil {
		logCtx.Error("Document splitting failed.", "error", err)
		RespondError(c, http.StatusInternalServerError, "conversion_failed", err)
		return
	}

	relPaths, err := h.images.SaveDocumentPages(ctx, documentID, pagePaths)
	if err != nil {
		logCtx.Error("Failed to store page images.", "error", err)
		RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}

	if err := h.indexer.Enqueue(services.IndexJob{
		ProjectID:  projectID,
		DocumentID: documentID,
		ImagePaths: relPaths,
	}); err != nil {
		// No record references these images yet, so nothing else can ever
		// clean them up.
		if cleanupErr := h.images.DeleteDocument(ctx, documentID); cleanupErr != nil {
			logCtx.Error("Failed to remove page images of rejected upload.", "error", cleanupErr)
		}
		RespondError(c, http.StatusServiceUnavailable, "queue_full", err)
		return
	}

	logCtx.Info("Upload accepted, analysis queued.", "pageCount", len(relPaths))
	RespondOK(c, models.UploadResponse{
		OK:         true,
		DocumentID: documentID,
		Pages:      len(relPaths),
		Message:    fmt.Sprintf("processing started for %d pages", len(relPaths)),
	})
}

// GET /api/search?q=&projectId=
func (h *Handler) Search(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		RespondOK(c, []models.SearchResult{})
		return
	}
	results, err := h.search.Search(c.Request.Context(), query, c.Query("projectId"))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "search_failed", err)
		return
	}
	RespondOK(c, results)
}

// GET /api/projects/:id/details
func (h *Handler) ListProjectDetails(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("id")
	if _, err := h.store.GetProject(ctx, projectID); err != nil {
		h.respondStoreError(c, err)
		return
	}
	records, err := h.store.ListByProject(ctx, projectID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_details_failed", err)
		return
	}
	if records == nil {
		records = []*models.IndexRecord{}
	}
	RespondOK(c, records)
}

// DELETE /api/details/:id
//
// Removes the record and its page image. A missing image is a no-op, the
// delete still succeeds.
func (h *Handler) DeleteDetail(c *gin.Context) {
	ctx := c.Request.Context()
	record, err := h.store.GetRecord(ctx, c.Param("id"))
	if err != nil {
		h.respondStoreError(c, err)
		return
	}
	if record.ImagePath != "" {
		if err := h.images.Delete(ctx, record.ImagePath); err != nil {
			RespondError(c, http.StatusInternalServerError, "delete_image_failed", err)
			return
		}
	}
	if err := h.store.DeleteRecord(ctx, record.ID); err != nil {
		RespondError(c, http.StatusInternalServerError, "delete_detail_failed", err)
		return
	}
	RespondOK(c, gin.H{"ok": true})
}

// GET /api/projects/:id/status
func (h *Handler) ProjectStatus(c *gin.Context) {
	ctx := c.Request.Context()
	projectID := c.Param("id")
	if _, err := h.store.GetProject(ctx, projectID); err != nil {
		h.respondStoreError(c, err)
		return
	}
	status, err := h.status.Status(ctx, projectID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "status_failed", err)
		return
	}
	RespondOK(c, status)
}

func (h *Handler) respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrNotFound) {
		RespondError(c, http.StatusNotFound, "not_found", err)
		return
	}
	RespondError(c, http.StatusInternalServerError, "store_error", err)
}

func isPDF(contentType, filename string) bool {
	if contentType == "application/pdf" {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}
