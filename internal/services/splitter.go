package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PageSplitter turns one uploaded document into an ordered sequence of page
// images. The document is validated and optimized with pdfcpu, then handed to
// an external rasterizer that renders one PNG per page into the output
// directory. Output filenames are zero-padded so lexicographic order equals
// page order.
type PageSplitter struct {
	rasterizer string
	dpi        int

	// Seams for tests; default to pdfcpu and exec.
	prepare func(inPath, outPath string) (int, error)
	run     func(ctx context.Context, name string, args ...string) error
}

func NewPageSplitter(rasterizer string, dpi int) *PageSplitter {
	return &PageSplitter{
		rasterizer: rasterizer,
		dpi:        dpi,
		prepare:    preparePDF,
		run:        runCommand,
	}
}

// Split renders documentPath into page images under outDir and returns their
// paths in page order. Any tool failure or an empty result is a
// *ConversionError; both are fatal for the upload.
func (s *PageSplitter) Split(ctx context.Context, documentPath, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, &ConversionError{Stage: "prepare", Err: err}
	}

	tempDir, err := os.MkdirTemp("", "sheet-split-*")
	if err != nil {
		return nil, &ConversionError{Stage: "prepare", Err: err}
	}
	defer os.RemoveAll(tempDir)

	optimizedPath := filepath.Join(tempDir, "optimized.pdf")
	pageCount, err := s.prepare(documentPath, optimizedPath)
	if err != nil {
		return nil, &ConversionError{Stage: "validate", Err: err}
	}
	if pageCount == 0 {
		return nil, &ConversionError{Stage: "validate", Err: errors.New("document has no pages")}
	}

	args := []string{"-png", "-r", strconv.Itoa(s.dpi), optimizedPath, filepath.Join(outDir, "page")}
	if err := s.run(ctx, s.rasterizer, args...); err != nil {
		return nil, &ConversionError{Stage: "rasterize", Err: err}
	}

	pages, err := filepath.Glob(filepath.Join(outDir, "*.png"))
	if err != nil {
		return nil, &ConversionError{Stage: "rasterize", Err: err}
	}
	if len(pages) == 0 {
		return nil, &ConversionError{Stage: "rasterize", Err: errors.New("rasterizer produced no page images")}
	}
	sort.Strings(pages)

	if len(pages) != pageCount {
		slog.Warn("Rasterized page count differs from document page count.",
			"document", documentPath, "expected", pageCount, "rendered", len(pages))
	}
	return pages, nil
}

// preparePDF validates and optimizes the source document and returns its
// page count.
func preparePDF(inPath, outPath string) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(inPath, outPath, cfg); err != nil {
		return 0, err
	}
	return api.PageCountFile(outPath)
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w (output: %s)", name, err, out)
	}
	return nil
}
