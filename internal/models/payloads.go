package models

// These structs define the JSON payloads exchanged with API clients.

// CreateProjectRequest is the body of POST /api/projects.
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UploadResponse is returned as soon as splitting succeeds, before any
// page analysis has run.
type UploadResponse struct {
	OK         bool   `json:"ok"`
	DocumentID string `json:"documentId"`
	Pages      int    `json:"pages"`
	Message    string `json:"message"`
}

// SearchResult is one ranked record returned by GET /api/search.
type SearchResult struct {
	IndexRecord
	RelevanceScore int `json:"relevanceScore"`
}

// ProjectStatus is the aggregate indexing progress for one project.
type ProjectStatus struct {
	Total      int `json:"total"`
	Indexed    int `json:"indexed"`
	Errors     int `json:"errors"`
	Processing int `json:"processing"`
}
