package service

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/orbitalshelf/server/store"
)

// DefaultAssets is the fixed list of client application files eligible for
// offline caching.
var DefaultAssets = []string{
	"/",
	"/index.html",
	"/manifest.json",
	"/css/style.css",
	"/js/app.js",
	"/js/data.js",
	"/js/api.js",
	"/js/ui.js",
}

// AssetCache serves client assets network-first from an upstream, falling
// back to the copy cached under the current generation when the upstream is
// unreachable. Constructing a cache purges every previous generation.
type AssetCache struct {
	upstream   string
	generation string
	assets     map[string]bool
	local      *store.Local
	client     *http.Client
}

func NewAssetCache(local *store.Local, upstream, generation string, assets []string) *AssetCache {
	allowed := make(map[string]bool, len(assets))
	for _, a := range assets {
		allowed[a] = true
	}
	if purged, err := local.PurgeAssetGenerations(generation); err != nil {
		log.Printf("assets: purge old generations: %v", err)
	} else if purged > 0 {
		log.Printf("assets: purged %d entries from previous generations", purged)
	}
	return &AssetCache{
		upstream:   strings.TrimSuffix(upstream, "/"),
		generation: generation,
		assets:     allowed,
		local:      local,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Get fetches an asset network-first. A successful fetch refreshes the cached
// copy; a failed fetch falls back to it. Paths outside the asset list and
// assets never fetched yield (nil, "", nil).
func (c *AssetCache) Get(ctx context.Context, path string) ([]byte, string, error) {
	if !c.assets[path] {
		return nil, "", nil
	}

	body, contentType, err := c.fetch(ctx, path)
	if err == nil {
		if putErr := c.local.PutAsset(c.generation, path, store.CachedAsset{ContentType: contentType, Body: body}); putErr != nil {
			log.Printf("assets: cache %s: %v", path, putErr)
		}
		return body, contentType, nil
	}
	log.Printf("assets: fetch %s failed, trying cache: %v", path, err)

	cached, cacheErr := c.local.GetAsset(c.generation, path)
	if cacheErr != nil {
		return nil, "", cacheErr
	}
	if cached == nil {
		return nil, "", nil
	}
	return cached.Body, cached.ContentType, nil
}

func (c *AssetCache) fetch(ctx context.Context, path string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.upstream+path, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", &upstreamError{status: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return body, contentType, nil
}

type upstreamError struct {
	status int
}

func (e *upstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d", e.status)
}
