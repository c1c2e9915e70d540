package manager

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"modelhost/internal/catalog"
	"modelhost/internal/engine"
	"modelhost/internal/faststore"
	"modelhost/internal/structstore"
	"modelhost/pkg/types"
)

// Manager owns the engine handle and all lifecycle state. It is safe for
// concurrent use; blocking engine work happens outside the mutex.
type Manager struct {
	mu sync.Mutex

	catalog *catalog.Catalog
	eng     engine.Engine
	fast    *faststore.Store
	parts   *structstore.Store

	// engine handle; only the load coordinator creates or replaces it
	handle      engine.Handle
	loadedModel string

	// at most one live load session; its existence is the load mutex
	session *LoadSession

	// at most one live generation per loaded handle
	gen *generation

	// canonical cache belief, mirrored from the fast store
	cached    []string
	cachedSet map[string]struct{}

	activeModel string

	observer  func(types.ProgressEvent)
	publisher EventPublisher
	logger    zerolog.Logger
	sysPrompt string
	now       func() time.Time

	startTime      time.Time
	loadsTotal     uint64
	evictionsTotal uint64
	lastError      string
}

// Ready reports whether an engine handle is ready to serve generation.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle != nil
}

// LoadedModel returns the id of the currently loaded model, empty when none.
func (m *Manager) LoadedModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadedModel
}

// Generating reports whether a generation stream is active.
func (m *Manager) Generating() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen != nil
}

// ListModels returns the catalog descriptors in stable insertion order.
func (m *Manager) ListModels() []types.ModelDescriptor {
	return m.catalog.List()
}

// SetEventPublisher installs a lifecycle event publisher.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p == nil {
		p = noopPublisher{}
	}
	m.publisher = p
}

// SetProgressObserver registers the process-level progress observer. A nil
// fn clears it. Per-load subscribers are attached via RequestLoadObserved.
func (m *Manager) SetProgressObserver(fn func(types.ProgressEvent)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// Close releases the engine handle. Any in-flight generation is stopped.
func (m *Manager) Close() error {
	m.Stop()
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	m.loadedModel = ""
	m.mu.Unlock()
	if h != nil {
		return h.Close()
	}
	return nil
}

func (m *Manager) publish(e Event) {
	m.mu.Lock()
	p := m.publisher
	m.mu.Unlock()
	p.Publish(e)
}
