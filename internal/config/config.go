package config

import (
	"fmt"
	"os"
	"strconv"
)

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetEnvAsInt reads an integer environment variable or returns a default value.
func GetEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// Config holds all server configuration, loaded from the environment.
type Config struct {
	Port    string
	DataDir string

	// Store backend: "firestore" or "memory".
	StoreBackend       string
	ProjectID          string
	VertexAIRegion     string
	FirestoreDatabase  string
	ProjectsCollection string
	RecordsCollection  string

	// Rasterizer is the external page-rendering binary.
	Rasterizer string
	RasterDPI  int

	// ArtifactsBucket switches page image storage from local disk to GCS.
	ArtifactsBucket string
}

// Load reads and validates the server configuration.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               GetEnv("PORT", "8080"),
		DataDir:            GetEnv("DATA_DIR", "data"),
		StoreBackend:       GetEnv("STORE_BACKEND", "firestore"),
		ProjectID:          GetEnv("PROJECT_ID", ""),
		VertexAIRegion:     GetEnv("VERTEX_AI_REGION", "us-central1"),
		FirestoreDatabase:  GetEnv("FIRESTORE_DATABASE_ID", ""),
		ProjectsCollection: GetEnv("FIRESTORE_PROJECTS_COLLECTION", "projects"),
		RecordsCollection:  GetEnv("FIRESTORE_RECORDS_COLLECTION", "indexRecords"),
		Rasterizer:         GetEnv("RASTERIZER", "pdftoppm"),
		RasterDPI:          GetEnvAsInt("RASTER_DPI", 150),
		ArtifactsBucket:    GetEnv("ARTIFACTS_BUCKET", ""),
	}

	if cfg.StoreBackend != "firestore" && cfg.StoreBackend != "memory" {
		return nil, fmt.Errorf("STORE_BACKEND must be \"firestore\" or \"memory\", got %q", cfg.StoreBackend)
	}
	// The analyzer always needs a GCP project for Vertex AI, regardless of
	// the store backend.
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	return cfg, nil
}
