package types

// ModelDescriptor describes a model known to the catalog. Descriptors are
// defined at process start and never mutated at runtime.
type ModelDescriptor struct {
	// Stable, globally unique identifier.
	// example: Llama-3.2-3B-Instruct-q4f32_1-MLC
	ID string `json:"id" example:"Llama-3.2-3B-Instruct-q4f32_1-MLC"`
	// Human-friendly name.
	// example: Llama 3.2 3B Medical Pro
	DisplayName string `json:"display_name" example:"Llama 3.2 3B Medical Pro"`
	// Approximate on-disk size of the weights in bytes.
	// example: 2200000000
	SizeBytesApprox int64 `json:"size_bytes_approx" example:"2200000000"`
	// Parameter count, human readable (e.g. "3B").
	// example: 3B
	ParameterCount string `json:"parameter_count,omitempty" example:"3B"`
	// Short description shown in pickers.
	Description string `json:"description,omitempty"`
	// Capability tags (e.g. chat, medical).
	CapabilityTags []string `json:"capability_tags,omitempty"`
	// Optional URL the engine fetches weights from when the model is not
	// materialized locally.
	SourceURL string `json:"source_url,omitempty"`
}

// HasTag reports whether the descriptor carries the given capability tag.
func (d ModelDescriptor) HasTag(tag string) bool {
	for _, t := range d.CapabilityTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Message is one turn of a conversation sent to the engine.
type Message struct {
	// Role of the author: system, user or assistant.
	// example: user
	Role string `json:"role" example:"user"`
	// Text content of the turn.
	Content string `json:"content"`
}
