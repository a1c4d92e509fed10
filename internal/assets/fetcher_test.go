// ABOUTME: Tests for the asset fetcher
// ABOUTME: Covers HTTP download, caching, local files and error handling
package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestFetchHTTPCaches(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("tick data"))
	}))
	defer server.Close()

	f, err := NewFetcher(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	for i := 0; i < 2; i++ {
		data, err := f.Fetch(context.Background(), server.URL+"/tick.wav?v=1")
		if err != nil {
			t.Fatalf("fetch %d failed: %v", i, err)
		}
		if string(data) != "tick data" {
			t.Errorf("expected tick data, got %q", data)
		}
	}

	if requests != 1 {
		t.Errorf("expected 1 request with cache, got %d", requests)
	}

	entries, err := os.ReadDir(f.CacheDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".wav" {
		t.Errorf("expected one cached .wav file, got %v", entries)
	}
}

func TestFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	f, err := NewFetcher(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	if _, err := f.Fetch(context.Background(), server.URL+"/missing.wav"); err == nil {
		t.Error("expected error for 404")
	}

	entries, _ := os.ReadDir(f.CacheDir())
	if len(entries) != 0 {
		t.Errorf("expected empty cache after failure, got %d entries", len(entries))
	}
}

func TestFetchLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.raw")
	if err := os.WriteFile(path, []byte{1, 2, 3, 4}, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := NewFetcher(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	for _, u := range []string{path, "file://" + path} {
		data, err := f.Fetch(context.Background(), u)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", u, err)
		}
		if len(data) != 4 {
			t.Errorf("%s: expected 4 bytes, got %d", u, len(data))
		}
	}
}

func TestFetchRejectsUnsupportedScheme(t *testing.T) {
	f, err := NewFetcher(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create fetcher: %v", err)
	}

	if _, err := f.Fetch(context.Background(), "ftp://example.com/a.wav"); err == nil {
		t.Error("expected error for ftp scheme")
	}
	if _, err := f.Fetch(context.Background(), ""); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestGetExtension(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"http://x/a.mp3", ".mp3"},
		{"http://x/a.flac?token=1", ".flac"},
		{"http://x/a", ""},
	}
	for _, tt := range tests {
		if got := getExtension(tt.url); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.url, tt.want, got)
		}
	}
}
