package manager

import (
	"time"

	"modelhost/pkg/types"
)

// LoadState is the lifecycle state of a load session.
type LoadState string

const (
	StateDownloading  LoadState = "downloading"
	StateInitializing LoadState = "initializing"
	StateReady        LoadState = "ready"
	StateFailed       LoadState = "failed"
)

// LoadSession tracks one in-flight load. At most one exists per process at
// any time; its presence on the Manager is the load mutex.
type LoadSession struct {
	ID        string
	ModelID   string
	StartedAt time.Time
	State     LoadState

	// telemetry, guarded by the manager mutex
	lastFraction float64
	lastBytes    int64
	lastSample   time.Time
	bytesTotal   int64
	throughput   float64 // bytes per second, instantaneous

	// at most one subscriber per session, cleared on termination
	subscriber func(types.ProgressEvent)
}
