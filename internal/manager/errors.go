package manager

import "errors"

// unknownModelError: the requested id is not in the catalog.
type unknownModelError struct{ id string }

func (e unknownModelError) Error() string { return "unknown model: " + e.id }

// ErrUnknownModel constructs an unknownModelError.
func ErrUnknownModel(id string) error { return unknownModelError{id: id} }

// IsUnknownModel reports whether err indicates a catalog miss.
func IsUnknownModel(err error) bool {
	var e unknownModelError
	return errors.As(err, &e)
}

// alreadyLoadingError: a load session already exists; callers should retry
// later or show a busy state.
type alreadyLoadingError struct{ id string }

func (e alreadyLoadingError) Error() string { return "load already in progress: " + e.id }

// IsAlreadyLoading reports whether err indicates the single-flight guard fired.
func IsAlreadyLoading(err error) bool {
	var e alreadyLoadingError
	return errors.As(err, &e)
}

// engineUnavailableError: the engine failed to initialize or materialize the
// model. Recoverable; the caller may retry or pick a smaller model.
type engineUnavailableError struct {
	id    string
	cause error
}

func (e engineUnavailableError) Error() string {
	return "engine unavailable for " + e.id + ": " + e.cause.Error()
}

func (e engineUnavailableError) Unwrap() error { return e.cause }

// IsEngineUnavailable reports whether err indicates an engine init/load failure.
func IsEngineUnavailable(err error) bool {
	var e engineUnavailableError
	return errors.As(err, &e)
}

// noModelLoadedError: generation requested with no ready engine handle.
type noModelLoadedError struct{}

func (noModelLoadedError) Error() string { return "no model loaded" }

// IsNoModelLoaded reports whether err indicates the generation precondition failed.
func IsNoModelLoaded(err error) bool {
	var e noModelLoadedError
	return errors.As(err, &e)
}

// generationInProgressError: a generation stream is already active. The
// caller must stop or await it first; requests are never queued.
type generationInProgressError struct{}

func (generationInProgressError) Error() string { return "generation already in progress" }

// IsGenerationInProgress reports whether err indicates the exclusive
// generation guard fired.
func IsGenerationInProgress(err error) bool {
	var e generationInProgressError
	return errors.As(err, &e)
}

// generationFailedError: the engine errored mid-stream. The exclusive flag
// has already been released when this surfaces.
type generationFailedError struct{ cause error }

func (e generationFailedError) Error() string { return "generation failed: " + e.cause.Error() }

func (e generationFailedError) Unwrap() error { return e.cause }

// IsGenerationFailed reports whether err indicates a mid-stream engine error.
func IsGenerationFailed(err error) bool {
	var e generationFailedError
	return errors.As(err, &e)
}
