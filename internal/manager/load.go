package manager

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"modelhost/internal/engine"
	"modelhost/pkg/types"
)

// RequestLoad loads modelID, downloading it first if necessary. It is the
// single entry point for loads: at most one load session exists per process,
// enforced by the session's existence rather than a lock held across the
// engine call. Overlapping requests fail immediately with AlreadyLoading.
func (m *Manager) RequestLoad(ctx context.Context, modelID string) error {
	return m.RequestLoadObserved(ctx, modelID, nil)
}

// RequestLoadObserved is RequestLoad with an optional per-session progress
// subscriber. The subscriber is cleared when the session terminates.
func (m *Manager) RequestLoadObserved(ctx context.Context, modelID string, subscriber func(types.ProgressEvent)) error {
	// Catalog miss fails fast, before any engine call.
	mdl, ok := m.catalog.Get(modelID)
	if !ok {
		return ErrUnknownModel(modelID)
	}

	m.mu.Lock()
	if m.session != nil {
		inFlight := m.session.ModelID
		m.mu.Unlock()
		return alreadyLoadingError{id: inFlight}
	}
	if m.loadedModel == modelID && m.handle != nil {
		// Idempotent fast path: already serving this model.
		m.mu.Unlock()
		return nil
	}
	sess := &LoadSession{
		ID:         uuid.NewString(),
		ModelID:    modelID,
		StartedAt:  m.now(),
		State:      StateDownloading,
		bytesTotal: mdl.SizeBytesApprox,
		subscriber: subscriber,
	}
	sess.lastSample = sess.StartedAt
	m.session = sess
	handle := m.handle
	m.mu.Unlock()

	// Advisory only: the cached hint picks the first user-facing message,
	// it never changes engine behavior.
	text := "starting download"
	if m.IsCached(modelID) {
		text = "resuming cached model"
	}
	m.logger.Info().Str("model", modelID).Str("session", sess.ID).Msg(text)
	m.publish(Event{Name: "load_start", ModelID: modelID, Fields: map[string]any{"session": sess.ID, "cached_hint": text}})
	m.emitProgress(sess, types.ProgressEvent{Fraction: 0, Text: text})

	fresh := false
	if handle == nil {
		h, err := m.eng.NewHandle()
		if err != nil {
			return m.failLoad(sess, nil, false, err)
		}
		handle = h
		fresh = true
	} else {
		// Materialize swaps the runtime model inside the live handle; a
		// stream on that handle must terminate before the swap begins.
		m.Stop()
	}

	handle.SetProgressObserver(func(s engine.ProgressSample) {
		m.onProgressSample(sess, s)
	})
	err := handle.Materialize(ctx, modelID)
	handle.SetProgressObserver(nil)
	if err != nil {
		return m.failLoad(sess, handle, fresh, err)
	}

	m.commitLoad(sess, handle, mdl)
	return nil
}

// failLoad terminates the session on the failure path: the session is
// destroyed so future loads are not blocked, and the previously loaded
// model (if any) remains loaded. A freshly created handle is closed.
func (m *Manager) failLoad(sess *LoadSession, handle engine.Handle, fresh bool, cause error) error {
	m.mu.Lock()
	sess.State = StateFailed
	targets := m.targetsLocked(sess)
	sess.subscriber = nil
	if m.session == sess {
		m.session = nil
	}
	m.lastError = cause.Error()
	m.mu.Unlock()

	if fresh && handle != nil {
		_ = handle.Close()
	}
	loadFailuresCounter.Inc()
	m.logger.Error().Err(cause).Str("model", sess.ModelID).Msg("load failed")
	m.publish(Event{Name: "load_failed", ModelID: sess.ModelID, Fields: map[string]any{"error": cause.Error()}})
	// Zero-progress error event carrying the failure reason.
	m.notify(targets, types.ProgressEvent{Fraction: 0, Text: "load failed: " + cause.Error()})

	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return cause
	}
	return engineUnavailableError{id: sess.ModelID, cause: cause}
}

// commitLoad installs the handle as the current one and finishes the
// session. Runs only on engine success.
func (m *Manager) commitLoad(sess *LoadSession, handle engine.Handle, mdl types.ModelDescriptor) {
	m.mu.Lock()
	oldHandle := m.handle
	replaced := oldHandle != nil && oldHandle != handle
	m.handle = handle
	m.loadedModel = mdl.ID
	m.lastError = ""
	m.loadsTotal++
	sess.State = StateReady
	targets := m.targetsLocked(sess)
	sess.subscriber = nil
	if m.session == sess {
		m.session = nil
	}
	bytes := sess.lastBytes
	if bytes == 0 {
		bytes = mdl.SizeBytesApprox
	}
	total := sess.bytesTotal
	if total < bytes {
		total = bytes
	}
	m.mu.Unlock()

	if replaced {
		_ = oldHandle.Close()
	}

	loadsCounter.Inc()
	m.logger.Info().Str("model", mdl.ID).Str("session", sess.ID).Msg("model ready")
	m.publish(Event{Name: "load_ready", ModelID: mdl.ID, Fields: map[string]any{"session": sess.ID}})

	// Final event always reports completion.
	m.notify(targets, types.ProgressEvent{
		Fraction:    1,
		Text:        "model ready",
		BytesLoaded: bytes,
		BytesTotal:  total,
	})

	// Optimistic: believe the engine's success without re-probing; a later
	// reconcile self-heals if the engine's storage write failed silently.
	m.MarkCached(mdl.ID)
	if err := m.SetActiveModel(mdl.ID); err != nil {
		m.logger.Warn().Err(err).Str("model", mdl.ID).Msg("persist active model failed")
	}
}
