// Package termdata is the academic-calendar data source: term class
// dates and fixed-date institutional events, fetched best effort from
// normalized JSON endpoints or ICS feeds. Everything here is optional
// input for the engine; failures degrade to cached or empty data.
package termdata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "termcal/internal/log"
)

// fetchMeta holds HTTP cache metadata for a single source URL.
type fetchMeta struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher retrieves calendar payloads with conditional requests
// (ETag / If-Modified-Since) and a disk cache fallback, so a dead
// registrar endpoint still yields last known data.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/calendar-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// Fetch returns the payload for url. Plain file paths (no scheme) are
// read directly, which is how bundled calendar files are configured.
func (f *Fetcher) Fetch(ctx context.Context, url string) (body []byte, fromCache bool, err error) {
	if url == "" {
		return nil, false, errors.New("termdata: source url is empty")
	}
	if !strings.Contains(url, "://") {
		body, err = os.ReadFile(url)
		return body, false, err
	}

	dir := filepath.Join(f.cacheDir, urlCacheKey(url))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, false, err
	}

	meta := f.loadMeta(dir)
	cached, _ := os.ReadFile(filepath.Join(dir, "body"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cached) > 0 {
			applog.Warn("calendar fetch failed; using cached body", "url", url, "err", err)
			return cached, true, nil
		}
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, false, err
		}
		f.saveCache(dir, fetchMeta{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			UpdatedAt:    time.Now().UTC(),
		}, body)
		return body, false, nil

	case http.StatusNotModified:
		if len(cached) == 0 {
			return nil, false, errors.New("termdata: 304 with no cached body")
		}
		return cached, true, nil

	default:
		if len(cached) > 0 {
			applog.Warn("calendar fetch non-OK; using cached body", "url", url, "status", resp.StatusCode)
			return cached, true, nil
		}
		return nil, false, errors.New("termdata: " + resp.Status)
	}
}

func urlCacheKey(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:8])
}

func (f *Fetcher) loadMeta(dir string) fetchMeta {
	var meta fetchMeta
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return meta
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fetchMeta{}
	}
	return meta
}

func (f *Fetcher) saveCache(dir string, meta fetchMeta, body []byte) {
	if err := os.WriteFile(filepath.Join(dir, "body"), body, 0o600); err != nil {
		applog.Warn("calendar cache save failed", "err", err)
		return
	}
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "meta.json"), data, 0o600); err != nil {
		applog.Warn("calendar cache meta save failed", "err", err)
	}
}
