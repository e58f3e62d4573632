// Package store defines the persistence boundary for projects and index
// records. The pipeline, status tracker and search engine all depend on these
// interfaces so that the Firestore implementation can be swapped for the
// in-memory one in tests and dev mode.
package store

import (
	"context"
	"errors"

	"github.com/Lllllllleong/detailsheetindex/internal/models"
)

// ErrNotFound is returned when a project or record does not exist.
var ErrNotFound = errors.New("not found")

// ProjectStore persists projects.
type ProjectStore interface {
	// CreateProject stores p and assigns its ID.
	CreateProject(ctx context.Context, p *models.Project) error
	GetProject(ctx context.Context, id string) (*models.Project, error)
	// ListProjects returns all projects, newest first.
	ListProjects(ctx context.Context) ([]*models.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// RecordStore persists index records. Records are append-then-immutable:
// once written they are never updated, so concurrent reads against
// in-progress pipeline writes are safe.
type RecordStore interface {
	// CreateRecord stores r and assigns its ID.
	CreateRecord(ctx context.Context, r *models.IndexRecord) error
	GetRecord(ctx context.Context, id string) (*models.IndexRecord, error)
	// ListByProject returns all records for a project, oldest first.
	ListByProject(ctx context.Context, projectID string) ([]*models.IndexRecord, error)
	// ListIndexed returns records with status indexed, optionally scoped to a
	// project (empty projectID means all projects).
	ListIndexed(ctx context.Context, projectID string) ([]*models.IndexRecord, error)
	// CountByStatus returns the number of indexed and errored records for a project.
	CountByStatus(ctx context.Context, projectID string) (indexed, errored int, err error)
	DeleteRecord(ctx context.Context, id string) error
	// DeleteByProject removes every record owned by a project.
	DeleteByProject(ctx context.Context, projectID string) error
}

// Store is the full persistence surface.
type Store interface {
	ProjectStore
	RecordStore
}
