package registry

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const (
	cacheFileName = "versions.json"

	// DiskCacheSchemaVersion discriminates the on-disk cache format. Any
	// mismatch causes the whole file to be ignored, never partially read.
	DiskCacheSchemaVersion = "1"
)

// CacheEntry is a single persisted resolution result.
type CacheEntry struct {
	Value            string    `json:"value"`
	TimestampWritten time.Time `json:"timestampWritten"`
}

type diskCacheFile struct {
	Version string                `json:"version"`
	Entries map[string]CacheEntry `json:"entries"`
}

// DiskCache persists resolved versions between runs so repeat scaffolds
// (and offline runs) start with a warm cache.
type DiskCache struct {
	fs   afero.Fs
	path string
	ttl  time.Duration

	mu      sync.Mutex
	entries map[string]CacheEntry
	dirty   bool
}

// NewDiskCache creates a disk cache backed by dir/versions.json and loads
// any existing entries. A missing, unreadable, or schema-incompatible file
// simply yields an empty cache.
func NewDiskCache(filesystem afero.Fs, dir string, ttl time.Duration) *DiskCache {
	c := &DiskCache{
		fs:      filesystem,
		path:    filepath.Join(dir, cacheFileName),
		ttl:     ttl,
		entries: make(map[string]CacheEntry),
	}
	c.load()
	return c
}

func (c *DiskCache) load() {
	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		// A missing or unreadable cache file starts the cache empty.
		return
	}

	var file diskCacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		return
	}
	if file.Version != DiskCacheSchemaVersion {
		return
	}
	if file.Entries != nil {
		c.entries = file.Entries
	}
}

// Get returns the persisted value for key if present and unexpired.
func (c *DiskCache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if time.Since(e.TimestampWritten) > c.ttl {
		return "", false
	}
	return e.Value, true
}

// Set stores value under key. The change is held in memory until Flush.
func (c *DiskCache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = CacheEntry{Value: value, TimestampWritten: time.Now()}
	c.dirty = true
}

// Flush writes the cache file if any entry changed since the last flush.
func (c *DiskCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dirty {
		return nil
	}

	file := diskCacheFile{
		Version: DiskCacheSchemaVersion,
		Entries: c.entries,
	}
	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling version cache: %w", err)
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := c.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating cache directory: %w", err)
		}
	}
	if err := afero.WriteFile(c.fs, c.path, data, 0644); err != nil {
		return fmt.Errorf("writing version cache: %w", err)
	}
	c.dirty = false
	return nil
}
