package manager

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"modelhost/internal/engine"
	"modelhost/pkg/types"
)

// onProgressSample normalizes one raw engine sample into a telemetry event.
// Invariants: emitted fractions are within [0,1] and non-decreasing for a
// session; throughput is never negative and never divides by zero.
func (m *Manager) onProgressSample(sess *LoadSession, raw engine.ProgressSample) {
	m.mu.Lock()
	if m.session != sess {
		// Sample from a terminated session; drop it.
		m.mu.Unlock()
		return
	}

	frac := raw.Fraction
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	if frac < sess.lastFraction {
		frac = sess.lastFraction
	}

	total := raw.BytesTotal
	if total <= 0 {
		total = sess.bytesTotal
	}
	loaded := raw.BytesLoaded
	if loaded <= 0 && total > 0 {
		loaded = int64(frac * float64(total))
	}

	now := m.now()
	deltaBytes := loaded - sess.lastBytes
	deltaSec := now.Sub(sess.lastSample).Seconds()
	tput := 0.0
	if deltaSec > 0 && deltaBytes > 0 {
		tput = float64(deltaBytes) / deltaSec
	}

	if deltaBytes > 0 {
		downloadBytesCounter.Add(float64(deltaBytes))
	}

	// Download is done; the engine is initializing the runtime.
	if frac >= 1 && sess.State == StateDownloading {
		sess.State = StateInitializing
	}

	sess.lastFraction = frac
	sess.lastBytes = loaded
	sess.lastSample = now
	sess.bytesTotal = total
	sess.throughput = tput

	ev := types.ProgressEvent{
		Fraction:    frac,
		Text:        progressText(sess.State, frac, loaded, total, tput),
		BytesLoaded: loaded,
		BytesTotal:  total,
	}
	targets := m.targetsLocked(sess)
	m.mu.Unlock()

	m.notify(targets, ev)
}

// emitProgress forwards a synthetic event (not derived from an engine
// sample) to the session's observers.
func (m *Manager) emitProgress(sess *LoadSession, ev types.ProgressEvent) {
	m.mu.Lock()
	targets := m.targetsLocked(sess)
	m.mu.Unlock()
	m.notify(targets, ev)
}

// targetsLocked snapshots the observers for a session: the per-session
// subscriber plus the process-level observer. Caller holds m.mu.
func (m *Manager) targetsLocked(sess *LoadSession) []func(types.ProgressEvent) {
	var targets []func(types.ProgressEvent)
	if sess.subscriber != nil {
		targets = append(targets, sess.subscriber)
	}
	if m.observer != nil {
		targets = append(targets, m.observer)
	}
	return targets
}

// notify delivers an event outside the manager mutex so observers may call
// back into the manager.
func (m *Manager) notify(targets []func(types.ProgressEvent), ev types.ProgressEvent) {
	for _, fn := range targets {
		fn(ev)
	}
}

// progressText renders the human-facing progress line.
func progressText(state LoadState, frac float64, loaded, total int64, tput float64) string {
	pct := int(frac * 100)
	switch {
	case state == StateInitializing:
		return "initializing model"
	case total > 0 && tput > 0:
		return fmt.Sprintf("downloading %d%% (%s of %s, %s/s)",
			pct, humanize.Bytes(uint64(loaded)), humanize.Bytes(uint64(total)), humanize.Bytes(uint64(tput)))
	case total > 0:
		return fmt.Sprintf("downloading %d%% (%s of %s)",
			pct, humanize.Bytes(uint64(loaded)), humanize.Bytes(uint64(total)))
	default:
		return fmt.Sprintf("downloading %d%%", pct)
	}
}
