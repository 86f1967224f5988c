package coverart

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.senan.xyz/taglib"

	"github.com/franz/music-minder/internal/util"
)

// sidecarNames are the file stems checked for directory artwork, in
// priority order, lowercase.
var sidecarNames = []string{
	"cover", "folder", "album", "front", "artwork", "albumart", "albumartsmall",
}

var sidecarExts = []string{"jpg", "jpeg", "png", "gif", "webp"}

// Resolver finds artwork for a track. Local sources are synchronous and
// cheap; only Resolve and Prefetch ever touch the network.
type Resolver struct {
	client *Client
	cache  *Cache
}

// NewResolver creates a resolver using the given archive client and cache.
func NewResolver(client *Client, cache *Cache) *Resolver {
	return &Resolver{client: client, cache: cache}
}

// ResolveLocal checks embedded tags and sidecar files only. It never blocks
// on the network, so it is safe on a UI or playback path.
func (r *Resolver) ResolveLocal(audioPath string) *Cover {
	if cover := embeddedCover(audioPath); cover != nil {
		return cover
	}
	return sidecarCover(audioPath)
}

// ResolveCached returns the cached cover for a release, or nil.
func (r *Resolver) ResolveCached(releaseID string) *Cover {
	return r.cache.Get(releaseID)
}

// Resolve tries every source in priority order: embedded, sidecar, cache,
// then the archive. A remote hit is written through to the cache. A miss
// everywhere returns (nil, nil); only transport failures return an error.
func (r *Resolver) Resolve(ctx context.Context, audioPath, releaseID string) (*Cover, error) {
	if cover := r.ResolveLocal(audioPath); cover != nil {
		return cover, nil
	}
	if releaseID == "" {
		return nil, nil
	}
	if cover := r.cache.Get(releaseID); cover != nil {
		return cover, nil
	}

	cover, err := r.client.FetchFront(ctx, releaseID, Size500)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.cache.Put(releaseID, cover); err != nil {
		util.WarnLog("Could not cache cover for %s: %v", releaseID, err)
	}
	return cover, nil
}

// Prefetch warms the cache for a release without returning the image.
func (r *Resolver) Prefetch(ctx context.Context, releaseID string) error {
	if releaseID == "" || r.cache.Contains(releaseID) {
		return nil
	}
	cover, err := r.client.FetchFront(ctx, releaseID, Size500)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return err
	}
	return r.cache.Put(releaseID, cover)
}

func isNotFound(err error) bool {
	return errors.Is(err, util.ErrNotFound)
}

// embeddedCover extracts artwork from the file's own tags.
func embeddedCover(audioPath string) *Cover {
	data, err := taglib.ReadImage(audioPath)
	if err != nil || len(data) == 0 {
		return nil
	}
	return &Cover{Data: data, MIME: http.DetectContentType(data), Source: SourceEmbedded}
}

// sidecarCover looks for a cover image next to the audio file. Exact
// lowercase names are tried first, then a directory listing catches case
// variations on case-sensitive filesystems.
func sidecarCover(audioPath string) *Cover {
	dir := filepath.Dir(audioPath)

	for _, name := range sidecarNames {
		for _, ext := range sidecarExts {
			if cover := loadSidecar(filepath.Join(dir, name+"."+ext)); cover != nil {
				return cover
			}
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := entry.Name()
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), ".")
		stem := strings.ToLower(strings.TrimSuffix(base, filepath.Ext(base)))
		if mimeForExt(ext) == "" {
			continue
		}
		for _, name := range sidecarNames {
			if stem == name {
				if cover := loadSidecar(filepath.Join(dir, base)); cover != nil {
					return cover
				}
			}
		}
	}
	return nil
}

func loadSidecar(path string) *Cover {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return &Cover{Data: data, MIME: mimeForExt(ext), Source: SourceSidecar}
}
