package catalog

import (
	"modelhost/pkg/types"
)

// Catalog is a static, insertion-ordered registry of model descriptors.
// It is read-only after construction. Entries are not validated against the
// engine's supported-model list; an unsupported id surfaces later as a
// failed materialize.
type Catalog struct {
	models []types.ModelDescriptor
	byID   map[string]int
}

// New builds a catalog from the given descriptors, preserving order.
// Duplicate ids keep the first occurrence.
func New(models []types.ModelDescriptor) *Catalog {
	c := &Catalog{byID: make(map[string]int, len(models))}
	for _, m := range models {
		if m.ID == "" {
			continue
		}
		if _, dup := c.byID[m.ID]; dup {
			continue
		}
		c.byID[m.ID] = len(c.models)
		c.models = append(c.models, m)
	}
	return c
}

// Builtin returns the default catalog shipped with the daemon. The set
// mirrors the WebLLM models the companion client offers.
func Builtin() *Catalog {
	return New([]types.ModelDescriptor{
		{
			ID:              "Llama-3.2-3B-Instruct-q4f32_1-MLC",
			DisplayName:     "Llama 3.2 3B Medical Pro",
			SizeBytesApprox: 2_200_000_000,
			ParameterCount:  "3B",
			Description:     "Default assistant model tuned for careful, structured answers.",
			CapabilityTags:  []string{"chat", "medical"},
		},
		{
			ID:              "Llama-3.2-1B-Instruct-q4f32_1-MLC",
			DisplayName:     "Llama 3.2 1B",
			SizeBytesApprox: 880_000_000,
			ParameterCount:  "1B",
			Description:     "Smaller fallback for low-memory devices.",
			CapabilityTags:  []string{"chat"},
		},
		{
			ID:              "Phi-3.5-mini-instruct-q4f16_1-MLC",
			DisplayName:     "Phi 3.5 Mini",
			SizeBytesApprox: 2_500_000_000,
			ParameterCount:  "3.8B",
			Description:     "General-purpose instruct model.",
			CapabilityTags:  []string{"chat"},
		},
		{
			ID:              "gemma-2-2b-it-q4f16_1-MLC",
			DisplayName:     "Gemma 2 2B",
			SizeBytesApprox: 1_600_000_000,
			ParameterCount:  "2B",
			Description:     "Compact chat model.",
			CapabilityTags:  []string{"chat"},
		},
	})
}

// WithExtra returns a new catalog with extra descriptors appended after the
// receiver's entries. The receiver is not modified.
func (c *Catalog) WithExtra(extra []types.ModelDescriptor) *Catalog {
	merged := make([]types.ModelDescriptor, 0, len(c.models)+len(extra))
	merged = append(merged, c.models...)
	merged = append(merged, extra...)
	return New(merged)
}

// List returns the descriptors in insertion order. The returned slice is a
// copy and safe for callers to mutate.
func (c *Catalog) List() []types.ModelDescriptor {
	out := make([]types.ModelDescriptor, len(c.models))
	copy(out, c.models)
	return out
}

// Get returns the descriptor for id.
func (c *Catalog) Get(id string) (types.ModelDescriptor, bool) {
	i, ok := c.byID[id]
	if !ok {
		return types.ModelDescriptor{}, false
	}
	return c.models[i], true
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.models) }
