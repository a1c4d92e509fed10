// ABOUTME: Asset fetcher for backing tracks, layers and tick sounds
// ABOUTME: Reads local files directly and caches HTTP downloads on disk
package assets

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/choirless/rehearsal/internal/logging"
)

// Fetcher loads asset bytes by URL.
type Fetcher struct {
	cacheDir string
	client   *http.Client
	logger   *slog.Logger
}

// NewFetcher creates a fetcher caching downloads under cacheDir. An empty
// cacheDir uses a directory in the system temp dir.
func NewFetcher(cacheDir string) (*Fetcher, error) {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "rehearsal-assets")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &Fetcher{
		cacheDir: cacheDir,
		client:   &http.Client{},
		logger:   logging.GetLogger("assets"),
	}, nil
}

// CacheDir returns the download cache directory.
func (f *Fetcher) CacheDir() string {
	return f.cacheDir
}

// Fetch returns the bytes behind rawURL. http and https URLs are cached;
// file URLs and bare paths are read from disk.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("empty asset url")
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Bare path, including Windows drive letters
		return f.readFile(rawURL)
	}

	switch u.Scheme {
	case "file":
		return f.readFile(u.Path)
	case "http", "https":
		path, err := f.download(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return f.readFile(path)
	default:
		return nil, fmt.Errorf("unsupported asset scheme %q", u.Scheme)
	}
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read asset: %w", err)
	}
	return data, nil
}

// download fetches rawURL into the cache and returns the cached path.
func (f *Fetcher) download(ctx context.Context, rawURL string) (string, error) {
	hash := sha256.Sum256([]byte(rawURL))
	filename := fmt.Sprintf("%x%s", hash[:8], getExtension(rawURL))
	cachePath := filepath.Join(f.cacheDir, filename)

	if _, err := os.Stat(cachePath); err == nil {
		f.logger.Debug("Asset cache hit", "path", cachePath)
		return cachePath, nil
	}

	f.logger.Info("Downloading asset", "url", rawURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asset download failed: HTTP %d", resp.StatusCode)
	}

	// Write to a temp file first so a failed copy never leaves a cache hit
	tmp, err := os.CreateTemp(f.cacheDir, "download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save asset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), cachePath); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to save asset: %w", err)
	}

	f.logger.Debug("Asset saved", "path", cachePath)
	return cachePath, nil
}

// getExtension extracts the file extension from a URL, ignoring the query.
func getExtension(rawURL string) string {
	rawURL = strings.Split(rawURL, "?")[0]
	return filepath.Ext(rawURL)
}

// Cleanup removes the download cache.
func (f *Fetcher) Cleanup() error {
	return os.RemoveAll(f.cacheDir)
}
