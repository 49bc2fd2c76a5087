// Package resolver turns image references found in markup into readable
// bytes: local files, files under a fallback source directory, or remote
// resources fetched over HTTP.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrNotFound          = errors.New("image not found")
	ErrFetchFailed       = errors.New("image fetch failed")
)

// DefaultMaxBytes caps remote response bodies.
const DefaultMaxBytes int64 = 32 << 20

// Source is a resolved image reference.
type Source struct {
	// Ref is the canonical reference that was resolved.
	Ref string
	// Path is the local file that was read. Empty for remote sources.
	Path string
	// URL is the fetched address. Empty for local sources.
	URL string
	// Format is the normalized extension hint (jpeg, png, svg, ...).
	Format string
	// Data holds the raw image bytes.
	Data []byte
}

// Remote reports whether the source was fetched over the network.
func (s *Source) Remote() bool { return s.URL != "" }

// Config holds resolver parameters.
type Config struct {
	// FallbackDir is tried when a local path cannot be read directly.
	FallbackDir string
	// RootDir is stripped from local paths before they are looked up
	// under FallbackDir, so "site/img/a.jpg" falls back to
	// "<FallbackDir>/img/a.jpg".
	RootDir string
	// Client performs remote fetches. Defaults to a client with Timeout.
	Client *http.Client
	// Timeout applies to the default client only. Zero means none.
	Timeout time.Duration
	// MaxBytes caps remote bodies. Zero selects DefaultMaxBytes.
	MaxBytes int64
	// UserAgent is sent with remote requests when set.
	UserAgent string
}

// Resolver reads image bytes for references.
type Resolver struct {
	cfg Config
}

// New creates a resolver.
func New(cfg Config) *Resolver {
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	return &Resolver{cfg: cfg}
}

// Resolve reads the bytes behind ref. The format check runs before any I/O.
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Source, error) {
	ext := DetectExtension(ref)
	if !Supported(ext) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	format := NormalizeFormat(ext)

	if IsRemote(ref) {
		u := ref
		if strings.HasPrefix(u, "//") {
			u = "https:" + u
		}
		data, err := r.fetch(ctx, u)
		if err != nil {
			return nil, err
		}
		return &Source{Ref: ref, URL: u, Format: format, Data: data}, nil
	}

	p := LocalPath(ref)
	data, err := os.ReadFile(p)
	if err == nil {
		return &Source{Ref: ref, Path: p, Format: format, Data: data}, nil
	}
	if r.cfg.FallbackDir != "" {
		fallback := filepath.Join(r.cfg.FallbackDir, r.underRoot(p))
		if fdata, ferr := os.ReadFile(fallback); ferr == nil {
			return &Source{Ref: ref, Path: fallback, Format: format, Data: fdata}, nil
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
}

// underRoot returns p relative to RootDir, or p itself when it lies
// outside of it.
func (r *Resolver) underRoot(p string) string {
	if r.cfg.RootDir == "" {
		return p
	}
	rel, err := filepath.Rel(filepath.Clean(r.cfg.RootDir), filepath.Clean(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return rel
}

func (r *Resolver) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if r.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", r.cfg.UserAgent)
	}

	resp, err := r.cfg.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrFetchFailed, resp.StatusCode, rawURL)
	}

	data, err := readLimited(resp.Body, r.cfg.MaxBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	return data, nil
}

// readLimited reads up to limit bytes and fails when the body is larger.
func readLimited(rd io.Reader, limit int64) ([]byte, error) {
	// Read limit+1 bytes so overflow is detectable.
	data, err := io.ReadAll(io.LimitReader(rd, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response body exceeds %d bytes", limit)
	}
	return data, nil
}

// IsRemote reports whether ref names a network resource: an absolute URL
// with a scheme or a protocol-relative "//host/..." reference.
func IsRemote(ref string) bool {
	if strings.HasPrefix(ref, "//") {
		return true
	}
	u, err := url.Parse(ref)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return true
	}
	return false
}

// LocalPath strips the query and fragment from a local reference and
// decodes percent-escapes so the result can be opened on disk.
func LocalPath(ref string) string {
	p := ref
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if unescaped, err := url.PathUnescape(p); err == nil {
		p = unescaped
	}
	return filepath.FromSlash(p)
}

// PathContext carries page-level information to a path transform.
type PathContext struct {
	// OutputPath is the generated page being processed.
	OutputPath string
}

// PathTransform maps a markup src to the reference used for lookup.
type PathTransform func(src string, ctx PathContext) string

// TransformImgPath is the default PathTransform: root-relative references
// ("/img/a.jpg") become relative to the working directory ("./img/a.jpg").
// Everything else is returned unchanged.
func TransformImgPath(src string, _ PathContext) string {
	if strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//") {
		return "." + src
	}
	return src
}

// RootedTransform returns a PathTransform that resolves root-relative
// references against root instead of the working directory.
func RootedTransform(root string) PathTransform {
	if root == "" || root == "." {
		return TransformImgPath
	}
	return func(src string, _ PathContext) string {
		if strings.HasPrefix(src, "/") && !strings.HasPrefix(src, "//") {
			return path.Join(filepath.ToSlash(root), src)
		}
		return src
	}
}

// SiteTransform resolves references the way a browser would for pages
// served from root: root-relative references are joined to root and bare
// relative references to the directory of the page being processed.
func SiteTransform(root string) PathTransform {
	rooted := RootedTransform(root)
	return func(src string, ctx PathContext) string {
		if ctx.OutputPath == "" || src == "" || strings.HasPrefix(src, "/") || IsRemote(src) {
			return rooted(src, ctx)
		}
		if u, err := url.Parse(src); err == nil && u.Scheme != "" {
			return src
		}
		return path.Join(path.Dir(filepath.ToSlash(ctx.OutputPath)), src)
	}
}
