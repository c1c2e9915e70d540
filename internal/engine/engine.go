// Package engine defines the narrow contract the lifecycle manager consumes
// from the inference runtime, plus the in-process llama.cpp implementation
// (build tag 'llama') and a fail-fast stub for CGO-free builds.
package engine

import (
	"context"
	"errors"

	"modelhost/pkg/types"
)

// ErrUnavailable indicates the inference runtime is not usable in this build
// or failed to come up. The manager wraps it for callers.
var ErrUnavailable = errors.New("inference engine unavailable")

// ProgressSample is a raw byte-progress sample reported by the engine while
// materializing a model. BytesLoaded/BytesTotal are 0 when unknown.
type ProgressSample struct {
	Fraction    float64
	BytesLoaded int64
	BytesTotal  int64
}

// SamplingParams captures generation parameters passed to the engine.
// Negative Temperature/TopP mean "unset", selecting the runtime default;
// zero is an explicit request (greedy sampling for temperature).
type SamplingParams struct {
	Temperature float32
	TopP        float32
	MaxTokens   int
}

// Handle is a live engine instance bound to at most one materialized model.
// Handles are owned by the load coordinator; generation borrows them.
type Handle interface {
	// SetProgressObserver installs the observer invoked with raw progress
	// samples during Materialize. A nil fn clears it.
	SetProgressObserver(fn func(ProgressSample))
	// Materialize downloads (if needed) and loads the model weights,
	// replacing any previously loaded model on this handle.
	Materialize(ctx context.Context, modelID string) error
	// StreamCompletion generates a completion for the conversation, calling
	// onFragment for every non-empty text fragment in arrival order.
	// Implementations must return when ctx is canceled or onFragment errors.
	StreamCompletion(ctx context.Context, messages []types.Message, params SamplingParams, onFragment func(string) error) error
	// Interrupt cooperatively stops an in-flight StreamCompletion.
	Interrupt()
	// Close releases the handle's resources.
	Close() error
}

// Engine creates handles and answers native cache-membership probes.
type Engine interface {
	NewHandle() (Handle, error)
	// QueryCacheMembership reports whether the engine considers the model's
	// weights fully materialized locally.
	QueryCacheMembership(ctx context.Context, modelID string) (bool, error)
}
