package tmdb

import "strings"

// DefaultImageBase is the TMDB image CDN prefix used for backdrops.
const DefaultImageBase = "https://image.tmdb.org/t/p/w300"

// ImageResolver turns relative TMDB image paths into absolute URLs.
type ImageResolver struct {
	base string
}

// NewImageResolver returns a resolver rooted at base, or DefaultImageBase when empty.
func NewImageResolver(base string) ImageResolver {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = DefaultImageBase
	}
	return ImageResolver{base: base}
}

// ImageURL resolves path. An empty path has no image and yields "".
func (r ImageResolver) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	base := r.base
	if base == "" {
		base = DefaultImageBase
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
