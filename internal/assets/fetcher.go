// ABOUTME: Asset fetcher for song audio, graphics, and the play queue
// ABOUTME: Downloads binaries over HTTP with an optional on-disk cache
package assets

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/karaoke-go/cdg-player/internal/protocol"
	"github.com/karaoke-go/cdg-player/internal/version"
)

// FetchError reports a failed asset or queue request
type FetchError struct {
	Path   string
	Status int // HTTP status, 0 when the request never completed
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.Path, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.Path, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Config holds fetcher settings
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	CacheDir string // empty disables caching
}

// Fetcher retrieves assets from the karaoke server
type Fetcher struct {
	base     *url.URL
	cacheDir string
	client   *http.Client
}

// NewFetcher creates a fetcher rooted at config.BaseURL
func NewFetcher(config Config) (*Fetcher, error) {
	base, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid server URL %q: missing scheme or host", config.BaseURL)
	}

	if config.CacheDir != "" {
		if err := os.MkdirAll(config.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}

	return &Fetcher{
		base:     base,
		cacheDir: config.CacheDir,
		client:   &http.Client{Timeout: config.Timeout},
	}, nil
}

// FetchBinary downloads the asset at path, relative to the server URL
func (f *Fetcher) FetchBinary(ctx context.Context, path string) ([]byte, error) {
	cachePath := f.cachePath(path)
	if cachePath != "" {
		if data, err := os.ReadFile(cachePath); err == nil {
			log.Printf("Fetch: cache hit %s", path)
			return data, nil
		}
	}

	log.Printf("Fetch: downloading %s", path)
	data, err := f.get(ctx, path)
	if err != nil {
		return nil, err
	}

	if cachePath != "" {
		if err := os.WriteFile(cachePath, data, 0644); err != nil {
			log.Printf("Fetch: failed to cache %s: %v", path, err)
		}
	}

	return data, nil
}

// NextSongID asks the queue for the next song.
// ok is false when nothing is queued.
func (f *Fetcher) NextSongID(ctx context.Context) (id string, ok bool, err error) {
	body, err := f.get(ctx, protocol.NextSongPath)
	if err != nil {
		return "", false, err
	}

	var resp protocol.QueueResponse
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&resp); err != nil {
		return "", false, &FetchError{Path: protocol.NextSongPath, Err: fmt.Errorf("invalid queue response: %w", err)}
	}
	if resp.Status != "" && resp.Status != protocol.StatusOK {
		return "", false, &FetchError{Path: protocol.NextSongPath, Err: fmt.Errorf("queue status %q", resp.Status)}
	}

	id, ok = resp.SongID()
	return id, ok, nil
}

// Cleanup removes cached assets
func (f *Fetcher) Cleanup() error {
	if f.cacheDir == "" {
		return nil
	}
	return os.RemoveAll(f.cacheDir)
}

func (f *Fetcher) get(ctx context.Context, path string) ([]byte, error) {
	target := f.base.JoinPath(strings.TrimPrefix(path, "/"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, &FetchError{Path: path, Err: err}
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Path: path, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Path: path, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	return data, nil
}

// cachePath maps an asset path to a file in the cache directory
func (f *Fetcher) cachePath(path string) string {
	if f.cacheDir == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(f.base.String() + "|" + path))
	return filepath.Join(f.cacheDir, fmt.Sprintf("%x%s", hash[:8], filepath.Ext(path)))
}
