//go:build llama

package engine

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	llama "github.com/go-skynet/go-llama.cpp"

	"modelhost/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// llamaEngine creates in-process llama.cpp handles.
type llamaEngine struct {
	cfg Config
}

// New constructs the llama.cpp engine.
func New(cfg Config) Engine {
	return &llamaEngine{cfg: cfg}
}

func (e *llamaEngine) NewHandle() (Handle, error) {
	return &llamaHandle{cfg: e.cfg}, nil
}

func (e *llamaEngine) QueryCacheMembership(ctx context.Context, modelID string) (bool, error) {
	return e.cfg.queryCacheMembership(ctx, modelID)
}

// llamaHandle owns one loaded llama model at a time.
type llamaHandle struct {
	cfg Config

	mu          sync.Mutex
	model       *llama.LLama
	modelID     string
	observer    func(ProgressSample)
	interrupted atomic.Bool
	fetchCancel context.CancelFunc
}

func (h *llamaHandle) SetProgressObserver(fn func(ProgressSample)) {
	h.mu.Lock()
	h.observer = fn
	h.mu.Unlock()
}

func (h *llamaHandle) emit(s ProgressSample) {
	h.mu.Lock()
	fn := h.observer
	h.mu.Unlock()
	if fn != nil {
		fn(s)
	}
}

func (h *llamaHandle) Materialize(ctx context.Context, modelID string) error {
	mdl, ok := h.cfg.Catalog.Get(modelID)
	if !ok {
		return fmt.Errorf("%w: model %q not in catalog", ErrUnavailable, modelID)
	}
	path := h.cfg.weightPath(modelID)

	fctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.fetchCancel = cancel
	h.mu.Unlock()
	defer func() {
		cancel()
		h.mu.Lock()
		h.fetchCancel = nil
		h.mu.Unlock()
	}()

	if _, err := os.Stat(path); err != nil {
		// Not materialized yet: fetch the weights with byte progress.
		n, err := fetchFile(fctx, h.cfg.HTTPClient, mdl.SourceURL, path, func(loaded, total int64) {
			if total <= 0 {
				total = mdl.SizeBytesApprox
			}
			frac := 0.0
			if total > 0 {
				frac = float64(loaded) / float64(total)
			}
			h.emit(ProgressSample{Fraction: frac, BytesLoaded: loaded, BytesTotal: total})
		})
		if err != nil {
			return fmt.Errorf("%w: fetch %s: %v", ErrUnavailable, modelID, err)
		}
		if h.cfg.Partitions != nil {
			if perr := h.cfg.Partitions.RecordPartition(ctx, modelID, n); perr != nil {
				h.cfg.Logger.Warn().Err(perr).Str("model", modelID).Msg("record partition failed")
			}
		}
	} else {
		// Cached: report the full byte range so telemetry stays truthful.
		if fi, serr := os.Stat(path); serr == nil {
			h.emit(ProgressSample{Fraction: 1, BytesLoaded: fi.Size(), BytesTotal: fi.Size()})
		}
	}

	// Initialization phase: load weights into the runtime, replacing any
	// previously loaded model on this handle.
	m, err := llama.New(path, llama.SetContext(zn(h.cfg.CtxSize, 2048)))
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", ErrUnavailable, modelID, err)
	}
	h.mu.Lock()
	if h.model != nil {
		h.model.Free()
	}
	h.model = m
	h.modelID = modelID
	h.mu.Unlock()
	h.emit(ProgressSample{Fraction: 1, BytesLoaded: mdl.SizeBytesApprox, BytesTotal: mdl.SizeBytesApprox})
	return nil
}

func (h *llamaHandle) StreamCompletion(ctx context.Context, messages []types.Message, params SamplingParams, onFragment func(string) error) error {
	h.mu.Lock()
	m := h.model
	h.mu.Unlock()
	if m == nil {
		return fmt.Errorf("%w: no model materialized", ErrUnavailable)
	}
	h.interrupted.Store(false)

	var cbErr error
	m.SetTokenCallback(func(tok string) bool {
		if h.interrupted.Load() {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if tok == "" {
			return true
		}
		if err := onFragment(tok); err != nil {
			cbErr = err
			return false
		}
		return true
	})
	_, err := m.Predict(flattenConversation(messages),
		llama.SetTokens(zn(params.MaxTokens, 256)),
		llama.SetThreads(zn(h.cfg.Threads, 4)),
		llama.SetTemperature(zf(params.Temperature, 0.7)),
		llama.SetTopP(zf(params.TopP, 0.9)),
	)
	if cbErr != nil {
		return cbErr
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if h.interrupted.Load() {
		// Cooperative stop is a normal termination, not an error.
		return nil
	}
	if err != nil {
		return err
	}
	return nil
}

func (h *llamaHandle) Interrupt() {
	h.interrupted.Store(true)
	h.mu.Lock()
	cancel := h.fetchCancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *llamaHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

// flattenConversation renders chat turns into the plain prompt format the
// in-process runtime expects.
func flattenConversation(messages []types.Message) string {
	var b strings.Builder
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("assistant: ")
	return b.String()
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// zf resolves a sampling value: negative means unset, zero is explicit.
func zf(v, def float32) float32 {
	if v >= 0 {
		return v
	}
	return def
}
