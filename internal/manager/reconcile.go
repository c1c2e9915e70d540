package manager

import (
	"context"

	"modelhost/internal/faststore"
)

// loadCachedSet seeds the in-memory cache belief from the fast store.
// Called once during construction.
func (m *Manager) loadCachedSet() {
	var ids []string
	if m.fast != nil {
		if _, err := m.fast.Get(faststore.KeyCachedModels, &ids); err != nil {
			m.logger.Warn().Err(err).Msg("fast store cached set unreadable, starting empty")
			ids = nil
		}
	}
	m.cached = ids
	m.cachedSet = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m.cachedSet[id] = struct{}{}
	}
	cachedModelsGauge.Set(float64(len(ids)))
}

// IsCached returns the canonical cache membership for id. It consults the
// fast store mirror only and never touches the engine; UI code polls it.
func (m *Manager) IsCached(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.cachedSet[id]
	return ok
}

// CachedModels returns the cached ids in stable order.
func (m *Manager) CachedModels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.cached))
	copy(out, m.cached)
	return out
}

// MarkCached inserts id into the fast store's cached set. Idempotent.
func (m *Manager) MarkCached(id string) {
	m.mu.Lock()
	changed := m.insertCachedLocked(id)
	m.mu.Unlock()
	if changed {
		m.publish(Event{Name: "cache_marked", ModelID: id, Fields: map[string]any{}})
	}
}

// EvictModel removes id from the fast store's cached set and drops the
// structured-tier partition reference. It only forgets the belief; the
// engine owns removal of the underlying bytes. Idempotent.
func (m *Manager) EvictModel(ctx context.Context, id string) error {
	m.mu.Lock()
	changed := false
	if _, ok := m.cachedSet[id]; ok {
		delete(m.cachedSet, id)
		out := m.cached[:0]
		for _, c := range m.cached {
			if c != id {
				out = append(out, c)
			}
		}
		m.cached = out
		m.persistCachedLocked()
		m.evictionsTotal++
		changed = true
	}
	// A durable active record pointing at an evicted model must not be
	// surfaced; clear it eagerly.
	clearActive := m.activeModel == id
	m.mu.Unlock()

	if clearActive {
		if err := m.SetActiveModel(""); err != nil {
			m.logger.Warn().Err(err).Str("model", id).Msg("clear active after evict failed")
		}
	}
	if m.parts != nil {
		if err := m.parts.RemovePartition(ctx, id); err != nil {
			m.logger.Warn().Err(err).Str("model", id).Msg("remove partition reference failed")
		}
	}
	if changed {
		evictionsCounter.Inc()
		m.logger.Info().Str("model", id).Msg("evicted from cache belief")
		m.publish(Event{Name: "evict", ModelID: id, Fields: map[string]any{}})
	}
	return nil
}

// Reconcile performs the expensive three-source merge: fast store ∪
// structured store ∪ per-model engine probes. The durable/engine signals are
// gathered without the manager mutex, then unioned into the belief set as it
// stands at write-back time. Merging into the current set rather than a
// start-of-merge snapshot keeps marks and evictions that land while the slow
// probes run; an id evicted mid-merge stays evicted unless a probe actually
// found its bytes. Probe failures degrade to "unknown" for that model rather
// than aborting the merge. The union is written back to the fast store
// (self-healing) and returned as the canonical cached set. Callers invoke it
// at startup and on demand, never implicitly per IsCached call.
func (m *Manager) Reconcile(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var found []string
	seen := make(map[string]struct{})
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			found = append(found, id)
		}
	}

	// Structured tier: coarse signal of engine-owned weight partitions.
	// A failed query degrades to "unknown", never "absent".
	if m.parts != nil {
		parts, err := m.parts.ListPartitions(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("structured tier query failed, treating as unknown")
		} else {
			for _, p := range parts {
				add(p.ModelID)
			}
		}
	}

	// Engine-native probes, one per catalog entry.
	for _, mdl := range m.catalog.List() {
		ok, err := m.eng.QueryCacheMembership(ctx, mdl.ID)
		if err != nil {
			m.logger.Debug().Err(err).Str("model", mdl.ID).Msg("cache probe failed, treating as unknown")
			continue
		}
		if ok {
			add(mdl.ID)
		}
	}

	m.mu.Lock()
	for _, id := range found {
		if _, ok := m.cachedSet[id]; !ok {
			m.cachedSet[id] = struct{}{}
			m.cached = append(m.cached, id)
		}
	}
	m.persistCachedLocked()
	out := make([]string, len(m.cached))
	copy(out, m.cached)
	m.mu.Unlock()

	reconcilesCounter.Inc()
	m.logger.Info().Int("cached", len(out)).Msg("cache reconciled")
	m.publish(Event{Name: "reconcile_done", Fields: map[string]any{"cached": len(out)}})
	return out, nil
}

// insertCachedLocked adds id to the belief set and persists. Returns true
// when the set changed. Caller holds m.mu.
func (m *Manager) insertCachedLocked(id string) bool {
	if _, ok := m.cachedSet[id]; ok {
		return false
	}
	m.cachedSet[id] = struct{}{}
	m.cached = append(m.cached, id)
	m.persistCachedLocked()
	return true
}

// persistCachedLocked writes the belief set through to the fast store.
// Caller holds m.mu.
func (m *Manager) persistCachedLocked() {
	cachedModelsGauge.Set(float64(len(m.cached)))
	if m.fast == nil {
		return
	}
	if err := m.fast.Put(faststore.KeyCachedModels, m.cached); err != nil {
		m.logger.Warn().Err(err).Msg("persist cached set failed")
	}
}
