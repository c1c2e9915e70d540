package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestWeightPathFlattensSeparators(t *testing.T) {
	cfg := Config{CacheDir: "/cache"}
	p := cfg.weightPath("org/model..q4")
	if filepath.Dir(p) != "/cache" {
		t.Fatalf("weight path escaped cache dir: %q", p)
	}
}

func TestQueryCacheMembership(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{CacheDir: dir}
	ctx := context.Background()
	ok, err := cfg.queryCacheMembership(ctx, "m1")
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if ok {
		t.Fatalf("expected absent")
	}
	if err := os.WriteFile(cfg.weightPath("m1"), []byte("w"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok, err = cfg.queryCacheMembership(ctx, "m1")
	if err != nil || !ok {
		t.Fatalf("expected cached, ok=%v err=%v", ok, err)
	}
	// a .partial file must not count as materialized
	if err := os.WriteFile(cfg.weightPath("m2")+".partial", []byte("w"), 0o644); err != nil {
		t.Fatalf("write partial: %v", err)
	}
	ok, err = cfg.queryCacheMembership(ctx, "m2")
	if err != nil || ok {
		t.Fatalf("partial file counted as cached")
	}
	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := cfg.queryCacheMembership(canceled, "m1"); err == nil {
		t.Fatalf("expected context error")
	}
}
