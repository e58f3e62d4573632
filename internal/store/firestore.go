package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/detailsheetindex/internal/models"
)

// FirestoreStore persists projects and index records in two Firestore
// collections. Document IDs are Firestore-generated.
//
// ListByProject and ListIndexed require composite indexes on
// (projectId, createdAt) and (status, projectId).
type FirestoreStore struct {
	client      *firestore.Client
	projectsCol string
	recordsCol  string
}

func NewFirestoreStore(client *firestore.Client, projectsCol, recordsCol string) *FirestoreStore {
	return &FirestoreStore{
		client:      client,
		projectsCol: projectsCol,
		recordsCol:  recordsCol,
	}
}

func (s *FirestoreStore) CreateProject(ctx context.Context, p *models.Project) error {
	docRef, _, err := s.client.Collection(s.projectsCol).Add(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to create project document: %w", err)
	}
	p.ID = docRef.ID
	return nil
}

func (s *FirestoreStore) GetProject(ctx context.Context, id string) (*models.Project, error) {
	doc, err := s.client.Collection(s.projectsCol).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project %s: %w", id, err)
	}
	var p models.Project
	if err := doc.DataTo(&p); err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", id, err)
	}
	p.ID = doc.Ref.ID
	return &p, nil
}

func (s *FirestoreStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	it := s.client.Collection(s.projectsCol).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	var out []*models.Project
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list projects: %w", err)
		}
		var p models.Project
		if err := doc.DataTo(&p); err != nil {
			return nil, fmt.Errorf("failed to decode project %s: %w", doc.Ref.ID, err)
		}
		p.ID = doc.Ref.ID
		out = append(out, &p)
	}
	return out, nil
}

func (s *FirestoreStore) DeleteProject(ctx context.Context, id string) error {
	docRef := s.client.Collection(s.projectsCol).Doc(id)
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get project %s: %w", id, err)
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete project %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) CreateRecord(ctx context.Context, r *models.IndexRecord) error {
	docRef, _, err := s.client.Collection(s.recordsCol).Add(ctx, r)
	if err != nil {
		return fmt.Errorf("failed to create index record: %w", err)
	}
	r.ID = docRef.ID
	return nil
}

func (s *FirestoreStore) GetRecord(ctx context.Context, id string) (*models.IndexRecord, error) {
	doc, err := s.client.Collection(s.recordsCol).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record %s: %w", id, err)
	}
	return decodeRecord(doc)
}

func (s *FirestoreStore) ListByProject(ctx context.Context, projectID string) ([]*models.IndexRecord, error) {
	query := s.client.Collection(s.recordsCol).
		Where("projectId", "==", projectID).
		OrderBy("createdAt", firestore.Asc)
	return s.collectRecords(ctx, query.Documents(ctx))
}

func (s *FirestoreStore) ListIndexed(ctx context.Context, projectID string) ([]*models.IndexRecord, error) {
	query := s.client.Collection(s.recordsCol).Where("status", "==", string(models.StatusIndexed))
	if projectID != "" {
		query = query.Where("projectId", "==", projectID)
	}
	return s.collectRecords(ctx, query.Documents(ctx))
}

func (s *FirestoreStore) CountByStatus(ctx context.Context, projectID string) (int, int, error) {
	it := s.client.Collection(s.recordsCol).
		Where("projectId", "==", projectID).
		Select("status").
		Documents(ctx)
	var indexed, errored int
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return 0, 0, fmt.Errorf("failed to count records: %w", err)
		}
		switch doc.Data()["status"] {
		case string(models.StatusIndexed):
			indexed++
		case string(models.StatusError):
			errored++
		}
	}
	return indexed, errored, nil
}

func (s *FirestoreStore) DeleteRecord(ctx context.Context, id string) error {
	docRef := s.client.Collection(s.recordsCol).Doc(id)
	if _, err := docRef.Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get record %s: %w", id, err)
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

func (s *FirestoreStore) DeleteByProject(ctx context.Context, projectID string) error {
	it := s.client.Collection(s.recordsCol).Where("projectId", "==", projectID).Documents(ctx)
	bw := s.client.BulkWriter(ctx)
	var jobs []*firestore.BulkWriterJob
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to list records for deletion: %w", err)
		}
		job, err := bw.Delete(doc.Ref)
		if err != nil {
			bw.End()
			return fmt.Errorf("failed to queue record deletion: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()
	// Write outcomes are only observable per job; a flush alone can hide a
	// partially failed cascade.
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}
	}
	return nil
}

func (s *FirestoreStore) collectRecords(ctx context.Context, it *firestore.DocumentIterator) ([]*models.IndexRecord, error) {
	var out []*models.IndexRecord
	for {
		doc, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list records: %w", err)
		}
		r, err := decodeRecord(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeRecord(doc *firestore.DocumentSnapshot) (*models.IndexRecord, error) {
	var r models.IndexRecord
	if err := doc.DataTo(&r); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", doc.Ref.ID, err)
	}
	r.ID = doc.Ref.ID
	return &r, nil
}
