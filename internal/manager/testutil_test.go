package manager

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"modelhost/internal/catalog"
	"modelhost/internal/engine"
	"modelhost/internal/faststore"
	"modelhost/pkg/types"
)

// fakeClock is a manually advanced clock for deterministic telemetry.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// fakeHandle scripts Materialize progress and StreamCompletion fragments.
type fakeHandle struct {
	mu       sync.Mutex
	observer func(engine.ProgressSample)
	// lastObserver keeps the most recent non-nil observer so tests can
	// replay straggler samples after the manager detaches.
	lastObserver func(engine.ProgressSample)

	samples         []engine.ProgressSample
	beforeSample    func(i int) // clock hook, called before emitting sample i
	materializeHook func(modelID string)
	materializeErr  error
	materialized    []string
	started         chan struct{} // closed when Materialize begins, if set
	release         chan struct{} // Materialize blocks on this, if set

	fragments    []string
	streamErr    error
	endless      bool // stream "tok" forever until interrupted or canceled
	streamConvs  [][]types.Message
	streamParams []engine.SamplingParams
	interrupted  atomic.Bool
	closed       atomic.Bool
}

func (h *fakeHandle) SetProgressObserver(fn func(engine.ProgressSample)) {
	h.mu.Lock()
	h.observer = fn
	if fn != nil {
		h.lastObserver = fn
	}
	h.mu.Unlock()
}

func (h *fakeHandle) Materialize(ctx context.Context, modelID string) error {
	if h.materializeHook != nil {
		h.materializeHook(modelID)
	}
	if h.started != nil {
		close(h.started)
		h.started = nil
	}
	if h.release != nil {
		select {
		case <-h.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h.mu.Lock()
	h.materialized = append(h.materialized, modelID)
	obs := h.observer
	h.mu.Unlock()
	for i, s := range h.samples {
		if h.beforeSample != nil {
			h.beforeSample(i)
		}
		if obs != nil {
			obs(s)
		}
	}
	return h.materializeErr
}

func (h *fakeHandle) StreamCompletion(ctx context.Context, messages []types.Message, params engine.SamplingParams, onFragment func(string) error) error {
	h.mu.Lock()
	h.streamConvs = append(h.streamConvs, messages)
	h.streamParams = append(h.streamParams, params)
	h.mu.Unlock()
	if h.endless {
		for {
			if h.interrupted.Load() {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := onFragment("tok"); err != nil {
				return err
			}
		}
	}
	for _, f := range h.fragments {
		if h.interrupted.Load() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := onFragment(f); err != nil {
			return err
		}
	}
	return h.streamErr
}

func (h *fakeHandle) Interrupt()   { h.interrupted.Store(true) }
func (h *fakeHandle) Close() error { h.closed.Store(true); return nil }

// fakeEngine hands out scripted handles and answers scripted cache probes.
type fakeEngine struct {
	mu          sync.Mutex
	next        []*fakeHandle
	handleErr   error
	handlesMade int
	probed      map[string]bool
	probeErrs   map[string]error
	probeCalls  int
	// probeHook runs outside the engine lock, once per probe; tests use it
	// to interleave manager calls with an in-flight reconcile.
	probeHook func(modelID string)
}

func (e *fakeEngine) NewHandle() (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handleErr != nil {
		return nil, e.handleErr
	}
	e.handlesMade++
	if len(e.next) > 0 {
		h := e.next[0]
		e.next = e.next[1:]
		return h, nil
	}
	return &fakeHandle{}, nil
}

func (e *fakeEngine) QueryCacheMembership(_ context.Context, modelID string) (bool, error) {
	e.mu.Lock()
	e.probeCalls++
	hook := e.probeHook
	err := e.probeErrs[modelID]
	ok := e.probed[modelID]
	e.mu.Unlock()
	if hook != nil {
		hook(modelID)
	}
	if err != nil {
		return false, err
	}
	return ok, nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]types.ModelDescriptor{
		{ID: "alpha", DisplayName: "Alpha", SizeBytesApprox: 1_200_000_000},
		{ID: "beta", DisplayName: "Beta", SizeBytesApprox: 900_000_000},
	})
}

type testEnv struct {
	m     *Manager
	eng   *fakeEngine
	fast  *faststore.Store
	clock *fakeClock
	path  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	return newTestEnvAt(t, path)
}

// newTestEnvAt lets restart tests reopen the same store file.
func newTestEnvAt(t *testing.T, path string) *testEnv {
	t.Helper()
	fast, err := faststore.Open(path)
	if err != nil {
		t.Fatalf("open faststore: %v", err)
	}
	eng := &fakeEngine{probed: map[string]bool{}, probeErrs: map[string]error{}}
	clock := newFakeClock()
	m := NewWithConfig(ManagerConfig{
		Catalog:   testCatalog(),
		Engine:    eng,
		FastStore: fast,
		Logger:    zerolog.Nop(),
		Now:       clock.Now,
	})
	return &testEnv{m: m, eng: eng, fast: fast, clock: clock, path: path}
}
