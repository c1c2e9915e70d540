package engine

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestFetchFileWritesAndReportsProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 100*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "m.gguf")
	var samples int
	var lastLoaded, lastTotal int64
	n, err := fetchFile(context.Background(), srv.Client(), srv.URL, dest, func(loaded, total int64) {
		samples++
		if loaded < lastLoaded {
			t.Fatalf("loaded went backwards: %d -> %d", lastLoaded, loaded)
		}
		lastLoaded, lastTotal = loaded, total
	})
	if err != nil {
		t.Fatalf("fetchFile: %v", err)
	}
	if n != int64(len(payload)) {
		t.Fatalf("expected %d bytes, got %d", len(payload), n)
	}
	if samples == 0 || lastLoaded != int64(len(payload)) || lastTotal != int64(len(payload)) {
		t.Fatalf("bad progress: samples=%d loaded=%d total=%d", samples, lastLoaded, lastTotal)
	}
	b, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if !bytes.Equal(b, payload) {
		t.Fatalf("downloaded content mismatch")
	}
	if _, err := os.Stat(dest + ".partial"); !os.IsNotExist(err) {
		t.Fatalf("partial file left behind")
	}
}

func TestFetchFileHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "m.gguf")
	if _, err := fetchFile(context.Background(), srv.Client(), srv.URL, dest, nil); err == nil {
		t.Fatalf("expected error for 404")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("dest should not exist after failed fetch")
	}
}

func TestFetchFileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data"))
	}))
	defer srv.Close()
	dest := filepath.Join(t.TempDir(), "m.gguf")
	if _, err := fetchFile(ctx, srv.Client(), srv.URL, dest, nil); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestFetchFileEmptyURL(t *testing.T) {
	if _, err := fetchFile(context.Background(), nil, "", "/tmp/x", nil); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
