package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/detailsheetindex/internal/artifacts"
	"github.com/Lllllllleong/detailsheetindex/internal/models"
	"github.com/Lllllllleong/detailsheetindex/internal/services"
	"github.com/Lllllllleong/detailsheetindex/internal/store"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// fakeSplitter writes the requested number of page images into outDir, the
// way the real splitter leaves rasterizer output behind.
type fakeSplitter struct {
	pages int
	err   error
}

func (f *fakeSplitter) Split(_ context.Context, _, outDir string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, f.pages)
	for i := 1; i <= f.pages; i++ {
		p := filepath.Join(outDir, fmt.Sprintf("page-%02d.png", i))
		if err := os.WriteFile(p, []byte("png"), 0o644); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

type fakeIndexer struct {
	jobs []services.IndexJob
	err  error
}

func (f *fakeIndexer) Enqueue(job services.IndexJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type noPending struct{}

func (noPending) PendingPages(string) int { return 0 }

type env struct {
	store     *store.MemoryStore
	images    *artifacts.LocalStore
	imageRoot string
	indexer   *fakeIndexer
	router    *gin.Engine
}

func newEnv(t *testing.T, splitter Splitter, indexer *fakeIndexer) *env {
	t.Helper()
	st := store.NewMemoryStore()
	imageRoot := t.TempDir()
	images, err := artifacts.NewLocalStore(imageRoot)
	require.NoError(t, err)
	h := NewHandler(st, images, splitter, indexer,
		services.NewSearchEngine(st),
		services.NewStatusTracker(st, noPending{}))
	return &env{store: st, images: images, imageRoot: imageRoot, indexer: indexer, router: NewRouter(h)}
}

func (e *env) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *env) createProject(t *testing.T, name string) *models.Project {
	t.Helper()
	p := &models.Project{Name: name, CreatedAt: time.Now().UTC()}
	require.NoError(t, e.store.CreateProject(context.Background(), p))
	return p
}

func multipartPDF(t *testing.T, filename string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(uploadField, filename)
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7 fake"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})
	rec := e.do(t, http.MethodGet, "/healthcheck", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestCreateProject(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})

	rec := e.do(t, http.MethodPost, "/api/projects",
		bytes.NewBufferString(`{"name":"Tower A","description":"structural set"}`), "application/json")
	require.Equal(t, http.StatusCreated, rec.Code)

	var created models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Tower A", created.Name)
	assert.Equal(t, "structural set", created.Description)
}

func TestCreateProject_MissingName(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})

	rec := e.do(t, http.MethodPost, "/api/projects",
		bytes.NewBufferString(`{"description":"no name"}`), "application/json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "invalid_request", envelope.Error.Code)
}

func TestListProjects(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})

	rec := e.do(t, http.MethodGet, "/api/projects", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String(), "no projects serializes as an empty array, not null")

	old := &models.Project{Name: "older", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	require.NoError(t, e.store.CreateProject(context.Background(), old))
	e.createProject(t, "newer")

	rec = e.do(t, http.MethodGet, "/api/projects", nil, "")
	var projects []*models.Project
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &projects))
	require.Len(t, projects, 2)
	assert.Equal(t, "newer", projects[0].Name)
}

func TestUploadDocument_UnknownProject(t *testing.T) {
	e := newEnv(t, &fakeSplitter{pages: 1}, &fakeIndexer{})
	body, contentType := multipartPDF(t, "plans.pdf")

	rec := e.do(t, http.MethodPost, "/api/projects/missing/upload", body, contentType)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadDocument_MissingFile(t *testing.T) {
	e := newEnv(t, &fakeSplitter{pages: 1}, &fakeIndexer{})
	p := e.createProject(t, "Tower A")

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.Close())

	rec := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/upload", body, w.FormDataContentType())
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "missing_file", envelope.Error.Code)
}

func TestUploadDocument_RejectsNonPDF(t *testing.T) {
	e := newEnv(t, &fakeSplitter{pages: 1}, &fakeIndexer{})
	p := e.createProject(t, "Tower A")
	body, contentType := multipartPDF(t, "notes.txt")

	rec := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/upload", body, contentType)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "unsupported_type", envelope.Error.Code)
}

func TestUploadDocument_SplitFailure(t *testing.T) {
	splitErr := &services.ConversionError{Stage: "validate", Err: errors.New("zero pages")}
	e := newEnv(t, &fakeSplitter{err: splitErr}, &fakeIndexer{})
	p := e.createProject(t, "Tower A")
	body, contentType := multipartPDF(t, "plans.pdf")

	rec := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/upload", body, contentType)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "conversion_failed", envelope.Error.Code)
	assert.Empty(t, e.indexer.jobs, "nothing is queued when splitting fails")
}

func TestUploadDocument_QueueFull(t *testing.T) {
	e := newEnv(t, &fakeSplitter{pages: 2}, &fakeIndexer{err: errors.New("indexing queue is full")})
	p := e.createProject(t, "Tower A")
	body, contentType := multipartPDF(t, "plans.pdf")

	rec := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/upload", body, contentType)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// The stored page images must be cleaned up: no record references them,
	// so a later project delete could never reach them.
	entries, err := os.ReadDir(e.imageRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave no page images behind")
}

func TestUploadDocument_Success(t *testing.T) {
	indexer := &fakeIndexer{}
	e := newEnv(t, &fakeSplitter{pages: 3}, indexer)
	p := e.createProject(t, "Tower A")
	body, contentType := multipartPDF(t, "plans.pdf")

	rec := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/upload", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.DocumentID)
	assert.Equal(t, 3, resp.Pages)
	assert.Contains(t, resp.Message, "3 pages")

	require.Len(t, indexer.jobs, 1)
	job := indexer.jobs[0]
	assert.Equal(t, p.ID, job.ProjectID)
	assert.Equal(t, resp.DocumentID, job.DocumentID)
	require.Len(t, job.ImagePaths, 3)

	// The queued paths resolve against the image store.
	for _, rel := range job.ImagePaths {
		assert.True(t, strings.HasPrefix(rel, resp.DocumentID+"/"))
		_, err := e.images.Read(context.Background(), rel)
		assert.NoError(t, err)
	}
}

func TestSearch_BlankQuery(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})

	for _, path := range []string{"/api/search", "/api/search?q=", "/api/search?q=%20%20"} {
		rec := e.do(t, http.MethodGet, path, nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	}
}

func TestSearch_ReturnsMatches(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})
	p := e.createProject(t, "Tower A")
	record := &models.IndexRecord{
		ProjectID:   p.ID,
		DocumentID:  "doc-1",
		PageNumber:  1,
		SheetTitle:  "Typical Wall Sections",
		SearchIndex: "steel beam anchor bolt",
		Status:      models.StatusIndexed,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, e.store.CreateRecord(context.Background(), record))

	rec := e.do(t, http.MethodGet, "/api/search?q=steel&projectId="+p.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var results []models.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].RelevanceScore)
	assert.Equal(t, "Typical Wall Sections", results[0].SheetTitle)
}

func TestListProjectDetails(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})

	rec := e.do(t, http.MethodGet, "/api/projects/missing/details", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	p := e.createProject(t, "Tower A")
	rec = e.do(t, http.MethodGet, "/api/projects/"+p.ID+"/details", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestDeleteDetail(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})

	rec := e.do(t, http.MethodDelete, "/api/details/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The image path is stale: the delete still succeeds.
	record := &models.IndexRecord{
		ProjectID:  "p1",
		DocumentID: "doc-1",
		PageNumber: 1,
		ImagePath:  "doc-1/page-01.png",
		Status:     models.StatusIndexed,
		CreatedAt:  time.Now().UTC(),
	}
	require.NoError(t, e.store.CreateRecord(context.Background(), record))

	rec = e.do(t, http.MethodDelete, "/api/details/"+record.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := e.store.GetRecord(context.Background(), record.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteProject_Cascades(t *testing.T) {
	indexer := &fakeIndexer{}
	e := newEnv(t, &fakeSplitter{pages: 2}, indexer)
	p := e.createProject(t, "Tower A")

	body, contentType := multipartPDF(t, "plans.pdf")
	rec := e.do(t, http.MethodPost, "/api/projects/"+p.ID+"/upload", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, indexer.jobs, 1)
	job := indexer.jobs[0]

	// Persist terminal records the way the pipeline would.
	for i, rel := range job.ImagePaths {
		record := &models.IndexRecord{
			ProjectID:  p.ID,
			DocumentID: job.DocumentID,
			PageNumber: i + 1,
			ImagePath:  rel,
			Status:     models.StatusIndexed,
			CreatedAt:  time.Now().UTC(),
		}
		require.NoError(t, e.store.CreateRecord(context.Background(), record))
	}

	rec = e.do(t, http.MethodDelete, "/api/projects/"+p.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	_, err := e.store.GetProject(context.Background(), p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	records, err := e.store.ListByProject(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	for _, rel := range job.ImagePaths {
		_, err := e.images.Read(context.Background(), rel)
		assert.Error(t, err, "no orphan images remain after project deletion")
	}
}

func TestDeleteProject_UnknownProject(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})
	rec := e.do(t, http.MethodDelete, "/api/projects/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectStatus(t *testing.T) {
	e := newEnv(t, &fakeSplitter{}, &fakeIndexer{})

	rec := e.do(t, http.MethodGet, "/api/projects/missing/status", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	p := e.createProject(t, "Tower A")
	for _, status := range []models.RecordStatus{models.StatusIndexed, models.StatusIndexed, models.StatusError} {
		record := &models.IndexRecord{
			ProjectID:  p.ID,
			DocumentID: "doc-1",
			Status:     status,
			CreatedAt:  time.Now().UTC(),
		}
		require.NoError(t, e.store.CreateRecord(context.Background(), record))
	}

	rec = e.do(t, http.MethodGet, "/api/projects/"+p.ID+"/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status models.ProjectStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.ProjectStatus{Total: 3, Indexed: 2, Errors: 1, Processing: 0}, status)
}
