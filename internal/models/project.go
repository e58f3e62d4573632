package models

import "time"

// Project groups the uploaded detail sheets of one job or client.
// Deleting a project cascades to every index record and page image it owns.
type Project struct {
	ID          string    `json:"id" firestore:"-"`
	Name        string    `json:"name" firestore:"name"`
	Description string    `json:"description,omitempty" firestore:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt" firestore:"createdAt"`
}
