// Package manager coordinates the local model lifecycle: cache
// reconciliation, single-flight loading with progress telemetry, exclusive
// cancellable generation, and durable active-model state. It is structured
// into small files by concern:
//
//   - manager.go: core Manager type, constructor delegation, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: load session state machine types.
//   - errors.go: error types and predicates (IsUnknownModel, IsAlreadyLoading, ...).
//   - reconcile.go: canonical cache membership (IsCached/MarkCached/Evict/Reconcile).
//   - load.go: RequestLoad single-flight coordination.
//   - progress.go: normalization of raw engine progress into telemetry events.
//   - generate.go: exclusive generation stream and Stop.
//   - active.go: durable active-model record and startup restore.
//   - watch.go: cache-dir watcher that triggers background reconciles.
//   - events.go / eventpub_memory.go: lifecycle event publishing.
//   - metrics.go: Prometheus collectors.
//   - status.go: status projection for the HTTP layer.
//
// External packages should treat this package as the orchestration layer and
// use public methods only. Internal types are subject to change.
package manager
