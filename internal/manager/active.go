package manager

import (
	"context"

	"modelhost/internal/faststore"
)

// ActiveModel returns the user's last explicit model selection. The durable
// record is read through on a cold start and validated against the cache
// belief: a stale record naming an uncached model is cleared rather than
// surfaced, so callers never auto-restore a model whose weights are gone.
func (m *Manager) ActiveModel() string {
	m.mu.Lock()
	if m.activeModel != "" {
		id := m.activeModel
		m.mu.Unlock()
		return id
	}
	m.mu.Unlock()

	if m.fast == nil {
		return ""
	}
	var id string
	ok, err := m.fast.Get(faststore.KeyActiveModel, &id)
	if err != nil {
		m.logger.Warn().Err(err).Msg("active model record unreadable")
		return ""
	}
	if !ok || id == "" {
		return ""
	}
	if !m.IsCached(id) {
		m.logger.Info().Str("model", id).Msg("active model record stale, clearing")
		if err := m.fast.Delete(faststore.KeyActiveModel); err != nil {
			m.logger.Warn().Err(err).Msg("clear stale active model failed")
		}
		return ""
	}

	m.mu.Lock()
	m.activeModel = id
	m.mu.Unlock()
	return id
}

// SetActiveModel records id as the active selection, write-through to the
// fast store. An empty id clears the record.
func (m *Manager) SetActiveModel(id string) error {
	m.mu.Lock()
	m.activeModel = id
	m.mu.Unlock()

	if m.fast == nil {
		return nil
	}
	if id == "" {
		return m.fast.Delete(faststore.KeyActiveModel)
	}
	return m.fast.Put(faststore.KeyActiveModel, id)
}

// AutoRestore loads the persisted active model, if any. Failures are logged
// and swallowed: a broken restore must not block startup.
func (m *Manager) AutoRestore(ctx context.Context) {
	id := m.ActiveModel()
	if id == "" {
		return
	}
	m.logger.Info().Str("model", id).Msg("auto-restoring active model")
	if err := m.RequestLoad(ctx, id); err != nil {
		m.logger.Warn().Err(err).Str("model", id).Msg("auto-restore failed")
	}
}
