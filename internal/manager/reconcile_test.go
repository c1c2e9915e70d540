package manager

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sort"
	"sync"
	"testing"

	"modelhost/internal/structstore"
)

func TestReconcileMergesThreeSources(t *testing.T) {
	env := newTestEnv(t)
	// Fast store already believes alpha is cached; the engine additionally
	// knows about beta.
	env.m.MarkCached("alpha")
	env.eng.probed["beta"] = true

	got, err := env.m.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	sort.Strings(got)
	if want := []string{"alpha", "beta"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("reconciled set = %v, want %v", got, want)
	}
	if !env.m.IsCached("beta") {
		t.Fatalf("beta not cached after reconcile")
	}
}

func TestReconcileIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.m.MarkCached("alpha")
	env.eng.probed["beta"] = true

	first, err := env.m.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("first reconcile: %v", err)
	}
	second, err := env.m.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	sort.Strings(first)
	sort.Strings(second)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("reconcile not idempotent: %v then %v", first, second)
	}
}

func TestReconcileProbeFailureDegradesToUnknown(t *testing.T) {
	env := newTestEnv(t)
	env.m.MarkCached("alpha")
	// alpha's probe errors; the fast-store belief must survive, not be
	// demoted to absent.
	env.eng.probeErrs["alpha"] = errors.New("probe timeout")

	got, err := env.m.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"alpha"}) {
		t.Fatalf("reconciled set = %v, want [alpha]", got)
	}
}

func TestReconcileWritesBackToFastStore(t *testing.T) {
	env := newTestEnv(t)
	env.eng.probed["alpha"] = true
	if _, err := env.m.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	// A fresh manager over the same store file sees the healed belief
	// without any engine probe.
	env2 := newTestEnvAt(t, env.path)
	if !env2.m.IsCached("alpha") {
		t.Fatalf("write-back not visible after restart")
	}
	if env2.eng.probeCalls != 0 {
		t.Fatalf("IsCached touched the engine: %d probes", env2.eng.probeCalls)
	}
}

func TestEvictThenReconcileRestoresFromEngine(t *testing.T) {
	env := newTestEnv(t)
	env.m.MarkCached("alpha")
	env.eng.probed["alpha"] = true

	if err := env.m.EvictModel(context.Background(), "alpha"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if env.m.IsCached("alpha") {
		t.Fatalf("alpha still cached after evict")
	}

	// The engine still holds the bytes; the optimistic merge restores the
	// belief rather than forcing a re-download.
	got, err := env.m.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"alpha"}) {
		t.Fatalf("reconciled set = %v, want [alpha]", got)
	}
	if !env.m.IsCached("alpha") {
		t.Fatalf("alpha not restored by reconcile")
	}
}

func TestEvictClearsActiveRecord(t *testing.T) {
	env := newTestEnv(t)
	env.m.MarkCached("alpha")
	if err := env.m.SetActiveModel("alpha"); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if err := env.m.EvictModel(context.Background(), "alpha"); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if got := env.m.ActiveModel(); got != "" {
		t.Fatalf("active model = %q after evicting it, want empty", got)
	}
}

func TestEvictIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.m.MarkCached("alpha")
	for i := 0; i < 2; i++ {
		if err := env.m.EvictModel(context.Background(), "alpha"); err != nil {
			t.Fatalf("evict %d: %v", i, err)
		}
	}
	if env.m.IsCached("alpha") {
		t.Fatalf("alpha still cached")
	}
}

func TestReconcileKeepsLoadCompletedDuringMerge(t *testing.T) {
	env := newTestEnv(t)
	gate := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	env.eng.probeHook = func(string) {
		once.Do(func() { close(entered) })
		<-gate
	}
	env.eng.next = []*fakeHandle{{}}

	done := make(chan struct{})
	var recErr error
	go func() {
		_, recErr = env.m.Reconcile(context.Background())
		close(done)
	}()
	<-entered

	// A load finishing while the probes run must survive the write-back.
	if err := env.m.RequestLoad(context.Background(), "alpha"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !env.m.IsCached("alpha") {
		t.Fatalf("alpha not cached right after load")
	}

	close(gate)
	<-done
	if recErr != nil {
		t.Fatalf("reconcile: %v", recErr)
	}
	if !env.m.IsCached("alpha") {
		t.Fatalf("cached state of alpha lost to concurrent reconcile")
	}
}

func TestReconcileKeepsEvictionDuringMerge(t *testing.T) {
	env := newTestEnv(t)
	env.m.MarkCached("beta")
	gate := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	env.eng.probeHook = func(string) {
		once.Do(func() { close(entered) })
		<-gate
	}

	done := make(chan struct{})
	go func() {
		_, _ = env.m.Reconcile(context.Background())
		close(done)
	}()
	<-entered

	// An eviction landing mid-merge stays evicted: no probe found beta's
	// bytes, so the stale pre-merge belief must not resurrect it.
	if err := env.m.EvictModel(context.Background(), "beta"); err != nil {
		t.Fatalf("evict: %v", err)
	}

	close(gate)
	<-done
	if env.m.IsCached("beta") {
		t.Fatalf("eviction clobbered by concurrent reconcile")
	}
}

func TestReconcileIncludesStructuredTier(t *testing.T) {
	env := newTestEnv(t)
	parts, err := structstore.Open(filepath.Join(t.TempDir(), "partitions.db"))
	if err != nil {
		t.Fatalf("open structstore: %v", err)
	}
	defer parts.Close()
	if err := parts.RecordPartition(context.Background(), "beta", 900_000_000); err != nil {
		t.Fatalf("record partition: %v", err)
	}
	env.m.parts = parts

	got, err := env.m.Reconcile(context.Background())
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"beta"}) {
		t.Fatalf("reconciled set = %v, want [beta]", got)
	}
}

func TestCachedSetSurvivesRestart(t *testing.T) {
	env := newTestEnv(t)
	env.m.MarkCached("alpha")
	env.m.MarkCached("beta")

	env2 := newTestEnvAt(t, env.path)
	if !env2.m.IsCached("alpha") || !env2.m.IsCached("beta") {
		t.Fatalf("cached set lost across restart: %v", env2.m.CachedModels())
	}
}
