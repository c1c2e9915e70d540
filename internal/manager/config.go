package manager

import (
	"time"

	"github.com/rs/zerolog"

	"modelhost/internal/catalog"
	"modelhost/internal/engine"
	"modelhost/internal/faststore"
	"modelhost/internal/structstore"
)

// defaultSystemInstruction is prepended to every conversation. Recovered
// from the companion client's assistant configuration.
const defaultSystemInstruction = "You are a careful health companion assistant. " +
	"Give clear, structured answers grounded in the information provided. " +
	"Do not diagnose or prescribe; encourage consulting a clinician for concerning findings."

// ManagerConfig encapsulates all collaborators and tunables for Manager
// construction. The manager is an explicit context object: no package-level
// mutable state, so tests can run many independent instances.
type ManagerConfig struct {
	Catalog   *catalog.Catalog
	Engine    engine.Engine
	FastStore *faststore.Store
	// Partitions is the structured tier; optional.
	Partitions *structstore.Store
	// SystemInstruction overrides the built-in system prompt when set.
	SystemInstruction string
	Publisher         EventPublisher
	Logger            zerolog.Logger
	// Now is a clock hook for tests; defaults to time.Now.
	Now func() time.Time
}

// NewWithConfig constructs a Manager from ManagerConfig, applying defaults
// for optional fields. Engine and FastStore are required.
func NewWithConfig(cfg ManagerConfig) *Manager {
	m := &Manager{
		catalog:   cfg.Catalog,
		eng:       cfg.Engine,
		fast:      cfg.FastStore,
		parts:     cfg.Partitions,
		sysPrompt: cfg.SystemInstruction,
		publisher: cfg.Publisher,
		logger:    cfg.Logger,
		now:       cfg.Now,
		cachedSet: make(map[string]struct{}),
	}
	if m.catalog == nil {
		m.catalog = catalog.Builtin()
	}
	if m.sysPrompt == "" {
		m.sysPrompt = defaultSystemInstruction
	}
	if m.publisher == nil {
		m.publisher = noopPublisher{}
	}
	if m.now == nil {
		m.now = time.Now
	}
	m.startTime = m.now()
	m.loadCachedSet()
	return m
}
