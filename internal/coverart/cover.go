// Package coverart resolves album artwork from embedded tags, sidecar
// files, a local disk cache, and the Cover Art Archive, in that order.
package coverart

import "strings"

// Source records where a resolved cover came from.
type Source int

const (
	SourceEmbedded Source = iota
	SourceSidecar
	SourceCache
	SourceRemote
)

func (s Source) String() string {
	switch s {
	case SourceEmbedded:
		return "embedded"
	case SourceSidecar:
		return "sidecar"
	case SourceCache:
		return "cache"
	case SourceRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Cover is resolved artwork.
type Cover struct {
	Data   []byte
	MIME   string
	Source Source
}

// Key identifies the album a resolved cover belongs to, so consecutive
// tracks from one album can reuse a resolution instead of repeating it.
type Key struct {
	Album  string
	Artist string
}

// Matches reports whether the key refers to the same album, ignoring
// case and surrounding whitespace.
func (k Key) Matches(album, artist string) bool {
	return foldEq(k.Album, album) && foldEq(k.Artist, artist)
}

func foldEq(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Size selects a Cover Art Archive thumbnail size.
type Size int

const (
	Size250 Size = iota
	Size500
	Size1200
)

// suffix is the URL path suffix for this thumbnail size.
func (s Size) suffix() string {
	switch s {
	case Size250:
		return "-250"
	case Size1200:
		return "-1200"
	default:
		return "-500"
	}
}

// mimeForExt maps an image extension (without dot, lowercase) to its MIME
// type. Unknown extensions return empty.
func mimeForExt(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}
