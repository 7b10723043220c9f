package media

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// maxArtworkBytes caps how much of an artwork response is read.
const maxArtworkBytes = 16 << 20

var ErrArtwork = errors.New("artwork unavailable")

// ArtworkCache downloads album artwork and stores a JPEG thumbnail per source URL.
//
// The cache lives for one artist pass; call [ArtworkCache.Purge] when the pass ends.
//
// Only files the cache stored or served are purged, so dir may be shared.
type ArtworkCache struct {
	dir        string
	httpClient *http.Client
	maxEdge    int

	mu    sync.Mutex
	owned map[string]struct{}
}

// NewArtworkCache creates a cache that writes thumbnails under dir.
//
// A nil client falls back to an [http.Client] with a 30 second timeout.
func NewArtworkCache(dir string, client *http.Client) *ArtworkCache {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ArtworkCache{dir: dir, httpClient: client, maxEdge: ThumbnailSize, owned: map[string]struct{}{}}
}

// Path returns the cache location for url whether or not it has been fetched.
func (c *ArtworkCache) Path(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".jpg")
}

// Fetch returns the path of the thumbnail for url, downloading it on first request.
func (c *ArtworkCache) Fetch(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("%w: no artwork url", ErrArtwork)
	}

	path := c.Path(url)
	if _, err := os.Stat(path); err == nil {
		c.track(path)
		return path, nil
	}

	data, err := c.download(ctx, url)
	if err != nil {
		return "", err
	}

	thumb, err := Thumbnail(data, c.maxEdge)
	if err != nil {
		return "", fmt.Errorf("%w: failed to decode image: %v", ErrArtwork, err)
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artwork directory: %w", err)
	}

	tmp, err := os.CreateTemp(c.dir, ".artwork-*")
	if err != nil {
		return "", fmt.Errorf("failed to create artwork file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(thumb); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write artwork: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write artwork: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to store artwork: %w", err)
	}

	c.track(path)
	return path, nil
}

func (c *ArtworkCache) track(path string) {
	c.mu.Lock()
	c.owned[path] = struct{}{}
	c.mu.Unlock()
}

func (c *ArtworkCache) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtwork, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrArtwork, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArtworkBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtwork, err)
	}
	return data, nil
}

// Purge removes the thumbnails this cache has stored or served. Other files in dir are left alone.
func (c *ArtworkCache) Purge() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for path := range c.owned {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
			continue
		}
		delete(c.owned, path)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to purge artwork cache: %w", errors.Join(errs...))
	}
	return nil
}
