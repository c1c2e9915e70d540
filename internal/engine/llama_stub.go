//go:build !llama

package engine

// This file provides a no-CGO stub for the llama engine. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real engine lives in llama.go (tagged 'llama').

import (
	"context"
	"fmt"

	"modelhost/pkg/types"
)

var llamaBuilt = false

// stubEngine refuses to create handles but still answers native
// cache-membership probes, which only need the filesystem.
type stubEngine struct {
	cfg Config
}

// New constructs the stub engine. Handles cannot be created without the
// 'llama' build tag; there is no mocked inference in production binaries.
func New(cfg Config) Engine {
	return &stubEngine{cfg: cfg}
}

func (e *stubEngine) NewHandle() (Handle, error) {
	return nil, fmt.Errorf("%w: llama support not built (missing 'llama' build tag)", ErrUnavailable)
}

func (e *stubEngine) QueryCacheMembership(ctx context.Context, modelID string) (bool, error) {
	return e.cfg.queryCacheMembership(ctx, modelID)
}

// stubHandle exists so the interface contract is covered even though
// NewHandle never returns one.
type stubHandle struct{}

func (stubHandle) SetProgressObserver(func(ProgressSample)) {}

func (stubHandle) Materialize(ctx context.Context, modelID string) error {
	return fmt.Errorf("%w: llama support not built", ErrUnavailable)
}

func (stubHandle) StreamCompletion(ctx context.Context, _ []types.Message, _ SamplingParams, _ func(string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%w: llama support not built", ErrUnavailable)
}

func (stubHandle) Interrupt() {}

func (stubHandle) Close() error { return nil }
