package resolver

import (
	"net/url"
	"path"
	"strings"
)

// supportedExtensions lists the formats a placeholder can be produced for.
var supportedExtensions = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"gif":  true,
	"png":  true,
	"webp": true,
	"svg":  true,
	"tiff": true,
	"tif":  true,
	"bmp":  true,
}

// formatParams are query parameters image CDNs use to carry the format
// when the path has no extension ("?format=jpg", imgix-style "?fm=png").
var formatParams = []string{"format", "fm"}

// DetectExtension returns the lower-cased file extension of ref without the
// dot. When the path has none, the format query parameters are consulted.
// An empty string means no format could be determined.
func DetectExtension(ref string) string {
	u, err := url.Parse(ref)
	if err != nil {
		// Malformed escapes still carry a usable extension on disk.
		p := ref
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
		return strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	}

	ext := strings.TrimPrefix(path.Ext(u.Path), ".")
	if ext != "" {
		return strings.ToLower(ext)
	}

	q := u.Query()
	for _, key := range formatParams {
		if v := q.Get(key); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}

// Supported reports whether ext is in the supported set.
func Supported(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// NormalizeFormat maps extension aliases to a single format name.
func NormalizeFormat(ext string) string {
	ext = strings.ToLower(ext)
	switch ext {
	case "jpg":
		return "jpeg"
	case "tif":
		return "tiff"
	}
	return ext
}

// IsVector reports whether the format has no fixed pixel dimensions.
func IsVector(format string) bool {
	return NormalizeFormat(format) == "svg"
}
