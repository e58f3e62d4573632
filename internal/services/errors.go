package services

import "fmt"

// ConversionError reports a failure to turn an uploaded document into page
// images. It is always detected before any index records are written, so it
// surfaces to the upload caller as a 5xx.
type ConversionError struct {
	Stage string
	Err   error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("document conversion failed at %s: %v", e.Stage, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// AnalysisError reports a vision-service transport or service failure for one
// page. The pipeline absorbs it into a terminal error record for that page.
type AnalysisError struct {
	PageNumber int
	Err        error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed for page %d: %v", e.PageNumber, e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }
