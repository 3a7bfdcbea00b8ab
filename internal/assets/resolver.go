package assets

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var ErrNotFound = errors.New("asset not found")

// Resolver maps ambient locators to local files. Relative locators live
// under the asset directory; http(s) locators are downloaded once into the
// cache directory and reused afterwards.
type Resolver struct {
	assetDir string
	cacheDir string
	http     *http.Client

	mu sync.Mutex // one download at a time
}

// NewResolver creates a resolver. An empty cacheDir uses the OS temp dir.
func NewResolver(assetDir, cacheDir string) *Resolver {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "attune-assets")
	}
	return &Resolver{
		assetDir: assetDir,
		cacheDir: cacheDir,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Resolve returns a readable path for locator.
func (r *Resolver) Resolve(locator string) (string, error) {
	if locator == "" {
		return "", fmt.Errorf("%w: empty locator", ErrNotFound)
	}
	if u, err := url.Parse(locator); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return r.download(u)
	}

	clean := filepath.Clean(filepath.FromSlash(locator))
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", fmt.Errorf("%w: %s outside asset dir", ErrNotFound, locator)
	}
	local := filepath.Join(r.assetDir, clean)
	if _, err := os.Stat(local); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	return local, nil
}

// download fetches u into the cache unless it is already there.
func (r *Resolver) download(u *url.URL) (string, error) {
	sum := sha1.Sum([]byte(u.String()))
	name := hex.EncodeToString(sum[:8]) + path.Ext(u.Path)
	local := filepath.Join(r.cacheDir, name)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := os.Stat(local); err == nil {
		return local, nil
	}
	if err := os.MkdirAll(r.cacheDir, 0755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	log.Printf("Downloading ambient asset %s", u)
	resp, err := r.http.Get(u.String())
	if err != nil {
		return "", fmt.Errorf("download asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %d", ErrNotFound, u, resp.StatusCode)
	}

	tmpFile, err := os.CreateTemp(r.cacheDir, "dl-*"+path.Ext(u.Path))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("write asset: %w", err)
	}
	tmpFile.Close()
	if err := os.Rename(tmpFile.Name(), local); err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("store asset: %w", err)
	}
	return local, nil
}
