package manager

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/google/uuid"

	"modelhost/internal/engine"
	"modelhost/pkg/types"
)

// generation is the exclusive per-handle generation session.
type generation struct {
	id      string
	modelID string
	handle  engine.Handle
	cancel  context.CancelFunc
	done    chan struct{}
}

// Stream is a finite, cancellable sequence of text fragments. It is not
// restartable; concatenating the fragments yields the full response.
type Stream struct {
	ch chan string

	mu  sync.Mutex
	err error
}

// Recv returns the next fragment. It returns io.EOF when the sequence ends
// normally (including cooperative cancellation) and a GenerationFailed error
// when the engine failed mid-stream.
func (s *Stream) Recv() (string, error) {
	frag, ok := <-s.ch
	if ok {
		return frag, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *Stream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// GenerateConfig carries the sampling parameters for one stream. Nil
// Temperature/TopP select the runtime defaults; an explicit zero is passed
// through (greedy sampling).
type GenerateConfig struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   int
}

// Generate starts an exclusive generation stream over the loaded model.
// The conversation is prefixed with the fixed system instruction. Fails with
// NoModelLoaded when no handle is ready, AlreadyLoading while a load session
// holds the handle, and GenerationInProgress when a stream is already
// active; requests are never queued so backpressure stays visible to
// callers. The exclusive flag is released unconditionally when the stream
// terminates, whether by completion, error, or cancellation.
func (m *Manager) Generate(ctx context.Context, messages []types.Message, cfg GenerateConfig) (*Stream, error) {
	m.mu.Lock()
	if m.handle == nil {
		m.mu.Unlock()
		return nil, noModelLoadedError{}
	}
	if m.session != nil {
		// The load coordinator may be swapping the runtime inside the
		// handle right now; a new stream must not borrow it mid-swap.
		inFlight := m.session.ModelID
		m.mu.Unlock()
		return nil, alreadyLoadingError{id: inFlight}
	}
	if m.gen != nil {
		m.mu.Unlock()
		return nil, generationInProgressError{}
	}
	genCtx, cancel := context.WithCancel(ctx)
	g := &generation{
		id:      uuid.NewString(),
		modelID: m.loadedModel,
		handle:  m.handle,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.gen = g
	sysPrompt := m.sysPrompt
	m.mu.Unlock()

	generationsCounter.Inc()
	m.logger.Info().Str("model", g.modelID).Str("generation", g.id).Msg("generation start")
	m.publish(Event{Name: "generate_start", ModelID: g.modelID, Fields: map[string]any{"generation": g.id}})

	stream := &Stream{ch: make(chan string, 1)}
	params := engine.SamplingParams{Temperature: -1, TopP: -1, MaxTokens: cfg.MaxTokens}
	if cfg.Temperature != nil {
		params.Temperature = float32(*cfg.Temperature)
	}
	if cfg.TopP != nil {
		params.TopP = float32(*cfg.TopP)
	}
	conv := make([]types.Message, 0, len(messages)+1)
	conv = append(conv, types.Message{Role: "system", Content: sysPrompt})
	conv = append(conv, messages...)

	go func() {
		err := g.handle.StreamCompletion(genCtx, conv, params, func(frag string) error {
			if frag == "" {
				return nil
			}
			select {
			case stream.ch <- frag:
				generationFragmentsCounter.Inc()
				return nil
			case <-genCtx.Done():
				return genCtx.Err()
			}
		})

		// Unconditional release of the exclusive flag.
		m.mu.Lock()
		if m.gen == g {
			m.gen = nil
		}
		m.mu.Unlock()
		cancel()

		if err != nil && !errors.Is(err, context.Canceled) {
			stream.setErr(generationFailedError{cause: err})
			m.logger.Error().Err(err).Str("generation", g.id).Msg("generation failed")
			m.publish(Event{Name: "generate_failed", ModelID: g.modelID, Fields: map[string]any{"error": err.Error()}})
		} else {
			m.publish(Event{Name: "generate_done", ModelID: g.modelID, Fields: map[string]any{"generation": g.id}})
		}
		close(stream.ch)
		close(g.done)
	}()

	return stream, nil
}

// Stop interrupts the active generation, if any. The in-flight stream
// terminates with no further fragments and the exclusive flag is cleared
// before Stop returns. Calling Stop with nothing active is a no-op.
func (m *Manager) Stop() {
	m.mu.Lock()
	g := m.gen
	m.mu.Unlock()
	if g == nil {
		return
	}
	m.logger.Info().Str("generation", g.id).Msg("generation stop requested")
	m.publish(Event{Name: "generate_stop", ModelID: g.modelID, Fields: map[string]any{"generation": g.id}})
	g.cancel()
	g.handle.Interrupt()
	// Cancellation is cooperative: the engine contract guarantees
	// StreamCompletion returns once the context is canceled.
	<-g.done
}
