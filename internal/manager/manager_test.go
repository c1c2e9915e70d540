package manager

import (
	"context"
	"io"
	"testing"

	"modelhost/pkg/types"
)

func TestLifecycleEventsPublished(t *testing.T) {
	env := newTestEnv(t)
	pub := NewMemoryPublisher()
	env.m.SetEventPublisher(pub)

	h := &fakeHandle{fragments: []string{"hi"}}
	env.eng.next = []*fakeHandle{h}
	if err := env.m.RequestLoad(context.Background(), "alpha"); err != nil {
		t.Fatalf("load: %v", err)
	}
	s, err := env.m.Generate(context.Background(), []types.Message{{Role: "user", Content: "hi"}}, GenerateConfig{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := drain(t, s); err != io.EOF {
		t.Fatalf("drain: %v", err)
	}

	names := map[string]bool{}
	for _, e := range pub.Events() {
		names[e.Name] = true
	}
	for _, want := range []string{"load_start", "load_ready", "cache_marked", "generate_start", "generate_done"} {
		if !names[want] {
			t.Fatalf("event %q not published, got %v", want, names)
		}
	}
}

func TestStatusSnapshot(t *testing.T) {
	env := newTestEnv(t)
	h := &fakeHandle{}
	env.eng.next = []*fakeHandle{h}
	if err := env.m.RequestLoad(context.Background(), "alpha"); err != nil {
		t.Fatalf("load: %v", err)
	}

	st := env.m.Status()
	if st.LoadedModel != "alpha" {
		t.Fatalf("status loaded model = %q", st.LoadedModel)
	}
	if st.ActiveModel != "alpha" {
		t.Fatalf("status active model = %q", st.ActiveModel)
	}
	if st.Generating {
		t.Fatalf("status reports generating while idle")
	}
	if st.Load != nil {
		t.Fatalf("status reports in-flight load after completion: %+v", st.Load)
	}
	if st.LoadsTotal != 1 {
		t.Fatalf("loads total = %d, want 1", st.LoadsTotal)
	}
	if len(st.CachedModels) != 1 || st.CachedModels[0] != "alpha" {
		t.Fatalf("cached models = %v", st.CachedModels)
	}
}

func TestCloseStopsGenerationAndReleasesHandle(t *testing.T) {
	env := newTestEnv(t)
	h := &fakeHandle{endless: true}
	env.eng.next = []*fakeHandle{h}
	if err := env.m.RequestLoad(context.Background(), "alpha"); err != nil {
		t.Fatalf("load: %v", err)
	}
	s, err := env.m.Generate(context.Background(), []types.Message{{Role: "user", Content: "go"}}, GenerateConfig{})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := s.Recv(); err != nil {
		t.Fatalf("recv: %v", err)
	}

	if err := env.m.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !h.closed.Load() {
		t.Fatalf("handle not closed")
	}
	if env.m.Ready() {
		t.Fatalf("manager still ready after close")
	}
	if _, err := drain(t, s); err != io.EOF {
		t.Fatalf("stream after close ended with %v, want EOF", err)
	}
}
