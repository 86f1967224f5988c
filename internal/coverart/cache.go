package coverart

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/franz/music-minder/internal/util"
)

// Cache stores downloaded covers on disk, one file per release id.
type Cache struct {
	dir string
}

// NewCache creates a cache rooted at dir, creating it if needed.
func NewCache(dir string) *Cache {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		util.WarnLog("Could not create cover cache at %s: %v", dir, err)
	}
	return &Cache{dir: dir}
}

// Get returns the cached cover for a release, or nil.
func (c *Cache) Get(releaseID string) *Cover {
	path := c.existingPath(releaseID)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return &Cover{Data: data, MIME: mimeForExt(ext), Source: SourceCache}
}

// Put stores a cover under its release id. Writes go through a temp file so
// a crash never leaves a truncated image behind.
func (c *Cache) Put(releaseID string, cover *Cover) error {
	ext := "jpg"
	if strings.Contains(cover.MIME, "png") {
		ext = "png"
	}
	path := filepath.Join(c.dir, releaseID+"."+ext)
	return util.AtomicWriteFile(path, cover.Data, 0o644)
}

// Contains reports whether a cover is cached for the release.
func (c *Cache) Contains(releaseID string) bool {
	return c.existingPath(releaseID) != ""
}

// existingPath checks for both extensions a Put may have used.
func (c *Cache) existingPath(releaseID string) string {
	for _, ext := range []string{"jpg", "png"} {
		p := filepath.Join(c.dir, releaseID+"."+ext)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// SizeBytes returns the total size of all cached covers.
func (c *Cache) SizeBytes() int64 {
	var total int64
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0
	}
	for _, e := range entries {
		if info, err := e.Info(); err == nil && !info.IsDir() {
			total += info.Size()
		}
	}
	return total
}

// Clear removes every cached cover.
func (c *Cache) Clear() error {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}
