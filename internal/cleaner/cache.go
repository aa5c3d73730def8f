package cleaner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/LuciferMornens/macos-optimizer-beta/internal/utils"
)

const (
	defaultSizeCacheEntries = 1000
	defaultSizeCacheTTL     = 5 * time.Minute
)

// SizeCache memoizes recursive directory sizes keyed by (path, mtime). The
// cleaner invalidates the deleted path and every ancestor after a successful
// deletion or Trash empty.
type SizeCache struct {
	lru *expirable.LRU[string, int64]

	mu    sync.Mutex
	paths map[string][]string // path -> live keys for that path
}

func NewSizeCache(entries int, ttl time.Duration) *SizeCache {
	if entries <= 0 {
		entries = defaultSizeCacheEntries
	}
	if ttl <= 0 {
		ttl = defaultSizeCacheTTL
	}
	return &SizeCache{
		lru:   expirable.NewLRU[string, int64](entries, nil, ttl),
		paths: make(map[string][]string),
	}
}

func sizeCacheKey(path string, mtime time.Time) string {
	return fmt.Sprintf("%s|%d", path, mtime.UnixNano())
}

// DirSize returns the recursive size of dir, computing lazily on miss.
func (c *SizeCache) DirSize(dir string) (int64, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		return info.Size(), nil
	}

	key := sizeCacheKey(dir, info.ModTime())
	if size, ok := c.lru.Get(key); ok {
		return size, nil
	}

	size, _, err := utils.GetDirSizeWithCount(dir)
	if err != nil {
		return 0, err
	}
	c.lru.Add(key, size)
	c.mu.Lock()
	c.paths[dir] = append(c.paths[dir], key)
	c.mu.Unlock()
	return size, nil
}

// Contains reports whether any live entry exists for path.
func (c *SizeCache) Contains(path string) bool {
	c.mu.Lock()
	keys := c.paths[path]
	c.mu.Unlock()
	for _, key := range keys {
		if _, ok := c.lru.Get(key); ok {
			return true
		}
	}
	return false
}

// Invalidate drops entries for path and all its ancestors.
func (c *SizeCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for p := path; ; {
		for _, key := range c.paths[p] {
			c.lru.Remove(key)
		}
		delete(c.paths, p)

		parent := filepath.Dir(p)
		if parent == p {
			break
		}
		p = parent
	}
}

// fileMeta is a cached stat result used during scan passes.
type fileMeta struct {
	Size     int64
	ModTime  time.Time
	Created  time.Time
	Accessed time.Time
	IsDir    bool
}

// MetadataCache memoizes stat results for scan passes. Entries expire after
// the TTL (one minute by default) or when Forget drops them, so a pass started
// within the TTL reuses earlier results.
type MetadataCache struct {
	lru *expirable.LRU[string, fileMeta]
}

func NewMetadataCache(entries int, ttl time.Duration) *MetadataCache {
	if entries <= 0 {
		entries = 4096
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &MetadataCache{lru: expirable.NewLRU[string, fileMeta](entries, nil, ttl)}
}

func (c *MetadataCache) Stat(path string) (fileMeta, error) {
	if meta, ok := c.lru.Get(path); ok {
		return meta, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fileMeta{}, err
	}
	meta := fileMeta{
		Size:     info.Size(),
		ModTime:  info.ModTime(),
		Created:  utils.CreationTime(info),
		Accessed: utils.AccessTime(info),
		IsDir:    info.IsDir(),
	}
	c.lru.Add(path, meta)
	return meta, nil
}

// Forget drops a cached stat after the underlying entry was deleted.
func (c *MetadataCache) Forget(path string) {
	c.lru.Remove(path)
}

// canonical resolves symlinks for de-duplication; the raw path is kept when
// resolution fails.
func canonical(path string) string {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return resolved
}

// isCreationTimePath reports whether age checks should use creation time for
// this location (Desktop/Downloads) instead of mtime.
func isCreationTimePath(path string) bool {
	home, err := utils.UserHomeDir()
	if err != nil {
		return false
	}
	for _, dir := range []string{"Desktop", "Downloads"} {
		prefix := filepath.Join(home, dir)
		if path == prefix || strings.HasPrefix(path, prefix+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
