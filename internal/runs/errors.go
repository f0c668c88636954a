package runs

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("run not found")
	ErrJobQueueNotConfigured = errors.New("job queue not configured")
)

// Failure codes attached to a failed run.
const (
	ErrorCodeExtraction        = "EXTRACTION_FAILURE"
	ErrorCodeValidation        = "VALIDATION_FAILURE"
	ErrorCodePrerequisite      = "PREREQUISITE_MISSING"
	ErrorCodeIterationBound    = "ITERATION_BOUND_EXCEEDED"
	ErrorCodeCancelled         = "CANCELLED"
	ErrorCodeInternalInvariant = "INTERNAL_INVARIANT_VIOLATION"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)

// WorkerError is a classified failure raised past a worker boundary.
// Extraction and validation failures are absorbed inside the data collector
// and never surface as WorkerError; the codes exist for the cases that do
// escalate.
type WorkerError struct {
	Code    string
	Message string
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPrerequisiteMissing reports a worker invoked without required upstream data.
func NewPrerequisiteMissing(msg string) *WorkerError {
	return &WorkerError{Code: ErrorCodePrerequisite, Message: msg}
}

// NewInvariantViolation reports an impossible state combination.
func NewInvariantViolation(msg string) *WorkerError {
	return &WorkerError{Code: ErrorCodeInternalInvariant, Message: msg}
}

// NewCancelled reports an externally cancelled run.
func NewCancelled(msg string) *WorkerError {
	return &WorkerError{Code: ErrorCodeCancelled, Message: msg}
}

// ClassifyFailure maps an error to a failure code for persistence and logs.
func ClassifyFailure(err error) string {
	if err == nil {
		return ErrorCodeInternal
	}
	var workerErr *WorkerError
	if errors.As(err, &workerErr) {
		return workerErr.Code
	}
	return ErrorCodeInternal
}
