package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/detailsheetindex/internal/artifacts"
	"github.com/Lllllllleong/detailsheetindex/internal/config"
	"github.com/Lllllllleong/detailsheetindex/internal/gcp"
	"github.com/Lllllllleong/detailsheetindex/internal/server"
	"github.com/Lllllllleong/detailsheetindex/internal/services"
	"github.com/Lllllllleong/detailsheetindex/internal/store"
)

func main() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	var st store.Store
	switch cfg.StoreBackend {
	case "memory":
		slog.Warn("Using in-memory store; nothing will be persisted across restarts.")
		st = store.NewMemoryStore()
	default:
		firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.FirestoreDatabase)
		if err != nil {
			slog.Error("Failed to create Firestore client", "error", err)
			os.Exit(1)
		}
		defer firestoreClient.Close()
		st = store.NewFirestoreStore(firestoreClient, cfg.ProjectsCollection, cfg.RecordsCollection)
	}

	var images artifacts.Store
	if cfg.ArtifactsBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			slog.Error("Failed to create storage client", "error", err)
			os.Exit(1)
		}
		defer storageClient.Close()
		images = artifacts.NewGCSStore(storageClient, cfg.ArtifactsBucket)
	} else {
		localImages, err := artifacts.NewLocalStore(filepath.Join(cfg.DataDir, "pages"))
		if err != nil {
			slog.Error("Failed to create local artifact store", "error", err)
			os.Exit(1)
		}
		images = localImages
	}

	// --- Services ---
	vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion)
	if err != nil {
		slog.Error("Failed to create Vertex AI client", "error", err)
		os.Exit(1)
	}
	defer vertexClient.Close()

	analyzer := services.NewPageAnalyzer(vertexClient)
	splitter := services.NewPageSplitter(cfg.Rasterizer, cfg.RasterDPI)
	pipeline := services.NewPipeline(st, images, analyzer)
	pipeline.Start(ctx)
	searchEngine := services.NewSearchEngine(st)
	statusTracker := services.NewStatusTracker(st, pipeline)

	// --- HTTP server ---
	handler := server.NewHandler(st, images, splitter, pipeline, searchEngine, statusTracker)
	router := server.NewRouter(handler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		slog.Info("Shutting down.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown failed", "error", err)
		}
	}()

	slog.Info("Server listening.", "port", cfg.Port, "storeBackend", cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}

	pipeline.Wait()
	slog.Info("Indexing worker drained.")
}
