package encoder

import (
	"fmt"
	"strings"
)

// Registry holds the placeholder encoders and picks one per image.
type Registry struct {
	encoders map[string]Encoder
}

// NewRegistry creates a registry with the built-in encoders.
func NewRegistry() *Registry {
	r := &Registry{
		encoders: make(map[string]Encoder),
	}
	for _, enc := range []Encoder{&JPEGEncoder{}, &PNGEncoder{}} {
		r.Register(enc)
	}
	return r
}

// Register adds or replaces the encoder for enc.Format().
func (r *Registry) Register(enc Encoder) {
	r.encoders[strings.ToLower(enc.Format())] = enc
}

// Get returns an encoder for the given format, or nil if unknown.
func (r *Registry) Get(format string) Encoder {
	return r.encoders[strings.ToLower(format)]
}

// Available returns all registered format names in priority order.
func (r *Registry) Available() []string {
	var result []string
	for _, f := range []string{"jpeg", "png"} {
		if _, ok := r.encoders[f]; ok {
			result = append(result, f)
		}
	}
	return result
}

// Select returns the encoder for a placeholder. preferred wins when it is
// registered; otherwise alpha images get PNG and opaque images JPEG.
func (r *Registry) Select(preferred string, hasAlpha bool) (Encoder, error) {
	if preferred != "" {
		if enc := r.Get(preferred); enc != nil {
			return enc, nil
		}
		return nil, fmt.Errorf("no encoder for format %q", preferred)
	}
	name := "jpeg"
	if hasAlpha {
		name = "png"
	}
	if enc := r.Get(name); enc != nil {
		return enc, nil
	}
	return nil, fmt.Errorf("no encoder for format %q", name)
}

// String returns a summary of available encoders.
func (r *Registry) String() string {
	avail := r.Available()
	if len(avail) == 0 {
		return "no encoders available"
	}
	return fmt.Sprintf("encoders: %s", strings.Join(avail, ", "))
}
