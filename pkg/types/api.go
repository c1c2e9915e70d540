package types

// ProgressEvent is the normalized progress sample delivered to external
// observers during a model load. Fraction is always within [0,1] and never
// decreases for a single load; the final event on success has Fraction = 1.
type ProgressEvent struct {
	// Completion fraction in [0,1].
	// example: 0.5
	Fraction float64 `json:"fraction" example:"0.5"`
	// Human-readable progress text.
	// example: downloading 50% (600 MB of 1.2 GB, 300 MB/s)
	Text string `json:"text" example:"downloading 50% (600 MB of 1.2 GB, 300 MB/s)"`
	// Bytes materialized so far, when known.
	BytesLoaded int64 `json:"bytes_loaded,omitempty"`
	// Total bytes expected, when known.
	BytesTotal int64 `json:"bytes_total,omitempty"`
}

// GenerateRequest is the payload for POST /generate.
type GenerateRequest struct {
	// Optional model id; when set and not loaded yet the request fails with
	// 409 rather than triggering an implicit load.
	Model string `json:"model,omitempty" example:"Llama-3.2-3B-Instruct-q4f32_1-MLC"`
	// Ordered conversation turns. A fixed system instruction is prepended
	// by the server.
	Messages []Message `json:"messages"`
	// Sampling temperature (higher = more random). Omitted means the
	// runtime default; an explicit 0 requests greedy sampling.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability. Omitted means the runtime default.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Maximum number of new tokens to generate.
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
}

// LoadRequest is the payload for POST /load and POST /evict.
type LoadRequest struct {
	// Model id from the catalog.
	Model string `json:"model" example:"Llama-3.2-3B-Instruct-q4f32_1-MLC"`
}

// ModelsResponse wraps the list of catalog models returned by GET /models.
type ModelsResponse struct {
	Models []ModelDescriptor `json:"models"`
}

// ReconcileResponse is returned by POST /reconcile.
type ReconcileResponse struct {
	// Canonical cached model ids after the merge.
	Cached []string `json:"cached"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: unknown model: foo
	Error string `json:"error" example:"unknown model: foo"`
	// HTTP status code.
	// example: 404
	Code int `json:"code" example:"404"`
}

// LoadSessionStatus describes the in-flight load, if any.
type LoadSessionStatus struct {
	// Model id being loaded.
	ModelID string `json:"model_id"`
	// Session state: downloading, initializing.
	State string `json:"state"`
	// Latest completion fraction.
	Fraction float64 `json:"fraction"`
	// Bytes materialized so far, when known.
	BytesLoaded int64 `json:"bytes_loaded,omitempty"`
	// Total bytes expected, when known.
	BytesTotal int64 `json:"bytes_total,omitempty"`
	// Instantaneous throughput in bytes per second.
	ThroughputBps float64 `json:"throughput_bps"`
	// Session start time (unix seconds).
	StartedAt int64 `json:"started_at_unix"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Currently loaded model id, empty when none.
	LoadedModel string `json:"loaded_model,omitempty"`
	// Durable active model id, empty when none.
	ActiveModel string `json:"active_model,omitempty"`
	// In-flight load session, if any.
	Load *LoadSessionStatus `json:"load,omitempty"`
	// True while a generation stream is active.
	Generating bool `json:"generating"`
	// Canonical cached model ids per the fast store.
	CachedModels []string `json:"cached_models"`
	// Total successful loads since start.
	LoadsTotal uint64 `json:"loads_total"`
	// Total evictions since start.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Last load error observed, if any.
	LastError string `json:"last_error,omitempty"`
	// Uptime of the daemon in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
}
