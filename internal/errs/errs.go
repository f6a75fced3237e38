// Package errs defines the error kinds surfaced to message callers.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Wire error codes.
const (
	CodeModelsDownloadable    = "MODELS_DOWNLOADABLE"
	CodeModelDownloadRequired = "MODEL_DOWNLOAD_REQUIRED"
)

var (
	ErrMissingContent     = errors.New("No content provided for summary generation")
	ErrEmptyContent       = errors.New("No readable content found on this page. The page might be empty or still loading.")
	ErrNoAIAvailable      = errors.New("AI summarization is not available in this browser")
	ErrActivationRequired = errors.New("Model download requires a recent user gesture")
	ErrMissingSummary     = errors.New("Summary is required to answer questions. Please generate a summary first.")
	ErrMissingQuestion    = errors.New("Question is required")
	ErrNotDownloadable    = errors.New("Model is not available for download")
	ErrUnknownModel       = errors.New("Unknown model type")
	ErrBusy               = errors.New("Content extraction already in progress")
)

// DownloadRequiredError reports capabilities that must be downloaded before
// the request can run.
type DownloadRequiredError struct {
	Models []string
	// Single is set when exactly one named model blocks the request; it maps
	// to MODEL_DOWNLOAD_REQUIRED instead of MODELS_DOWNLOADABLE.
	Single bool
}

func (e *DownloadRequiredError) Error() string {
	if e.Single && len(e.Models) == 1 {
		return fmt.Sprintf("The %s model needs to be downloaded first", e.Models[0])
	}
	return "Models need to be downloaded: " + strings.Join(e.Models, ", ")
}

// BackendError wraps a failure inside the generative backend.
type BackendError struct {
	Kind string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("backend call failed: %v", e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Kind, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Code returns the wire error code for err, or "".
func Code(err error) string {
	var dr *DownloadRequiredError
	if errors.As(err, &dr) {
		if dr.Single {
			return CodeModelDownloadRequired
		}
		return CodeModelsDownloadable
	}
	return ""
}
