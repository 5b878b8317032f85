package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrAlreadyExists   = errors.New("entity already exists")
	ErrInvalidArgument = errors.New("invalid argument")

	ErrInvalidExecContext = errors.New("invalid query execution context")
	ErrReadDatabaseRow    = errors.New("failed to read database row")

	// Fatal pipeline errors: retrying the same job will not help.
	ErrBadScript    = errors.New("model produced an unusable scene script")
	ErrNoSceneClass = errors.New("no voiceover scene class in generated script")
	ErrEmptyPrompt  = errors.New("empty prompt")

	// Retryable pipeline errors: transient infrastructure failures.
	ErrAIUnavailable = errors.New("ai provider unavailable")
	ErrRenderFailed  = errors.New("scene render failed")
	ErrRenderTimeout = errors.New("scene render timed out")
	ErrUploadFailed  = errors.New("artifact upload failed")
	ErrSearchFailed  = errors.New("reference search failed")

	ErrJobBusy = errors.New("a job for this prompt is already in flight")
)

// Retryable reports whether err is a transient failure worth another attempt.
// Anything not explicitly listed is treated as fatal so bad scripts and
// programming errors don't loop through the queue.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrAIUnavailable),
		errors.Is(err, ErrRenderFailed),
		errors.Is(err, ErrRenderTimeout),
		errors.Is(err, ErrUploadFailed),
		errors.Is(err, ErrSearchFailed):
		return true
	}
	return false
}
