package manager

import (
	"modelhost/pkg/types"
)

// Status assembles a point-in-time snapshot for GET /status.
func (m *Manager) Status() types.StatusResponse {
	now := m.now()

	m.mu.Lock()
	resp := types.StatusResponse{
		LoadedModel:    m.loadedModel,
		ActiveModel:    m.activeModel,
		Generating:     m.gen != nil,
		LoadsTotal:     m.loadsTotal,
		EvictionsTotal: m.evictionsTotal,
		LastError:      m.lastError,
		UptimeSeconds:  int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix: now.Unix(),
	}
	resp.CachedModels = make([]string, len(m.cached))
	copy(resp.CachedModels, m.cached)
	if sess := m.session; sess != nil {
		resp.Load = &types.LoadSessionStatus{
			ModelID:       sess.ModelID,
			State:         string(sess.State),
			Fraction:      sess.lastFraction,
			BytesLoaded:   sess.lastBytes,
			BytesTotal:    sess.bytesTotal,
			ThroughputBps: sess.throughput,
			StartedAt:     sess.StartedAt.Unix(),
		}
	}
	m.mu.Unlock()

	return resp
}
