// Package placeholder decodes source images and produces the cached data:
// true dimensions plus a tiny blurred preview encoded as a data URI.
package placeholder

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/vincent-petithory/dataurl"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/AnyUserName/lazyimg-cli/internal/cache"
	"github.com/AnyUserName/lazyimg-cli/internal/encoder"
	"github.com/AnyUserName/lazyimg-cli/internal/hasher"
	"github.com/AnyUserName/lazyimg-cli/internal/profile"
	"github.com/AnyUserName/lazyimg-cli/internal/resolver"
)

// ErrDecodeFailed is returned when source bytes are not a decodable image.
var ErrDecodeFailed = errors.New("image decode failed")

// TransparentGIF is the placeholder used for vector sources: a 1×1
// transparent GIF.
const TransparentGIF = "data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7"

// Generator turns resolved sources into cache entries.
type Generator struct {
	profile  profile.Profile
	registry *encoder.Registry
}

// New creates a generator for the given placeholder profile.
func New(p profile.Profile) *Generator {
	if p.MaxWidth <= 0 || p.MaxHeight <= 0 {
		def := profile.Get(profile.DefaultName)
		p = p.Override(def.MaxWidth, def.MaxHeight, 0, nil)
	}
	return &Generator{
		profile:  p,
		registry: encoder.NewRegistry(),
	}
}

// Generate decodes src and builds its entry. The result depends only on the
// source bytes and the profile.
func (g *Generator) Generate(src *resolver.Source) (cache.Entry, error) {
	hash := hasher.ContentHash(src.Data, hasher.Len)

	if isSVG(src) {
		w, h := svgDimensions(src.Data)
		return cache.Entry{
			Width:  w,
			Height: h,
			Src:    TransparentGIF,
			Format: "svg",
			Hash:   hash,
		}, nil
	}

	img, format, err := image.Decode(bytes.NewReader(src.Data))
	if err != nil {
		return cache.Entry{}, fmt.Errorf("%w: %s: %v", ErrDecodeFailed, src.Ref, err)
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()
	if origW <= 0 || origH <= 0 {
		return cache.Entry{}, fmt.Errorf("%w: %s: empty image", ErrDecodeFailed, src.Ref)
	}

	uri, err := g.Placeholder(img)
	if err != nil {
		return cache.Entry{}, fmt.Errorf("placeholder %s: %w", src.Ref, err)
	}

	return cache.Entry{
		Width:  origW,
		Height: origH,
		Src:    uri,
		Format: resolver.NormalizeFormat(format),
		Hash:   hash,
	}, nil
}

// Placeholder shrinks img into the profile box, blurs it and returns the
// encoded data URI.
func (g *Generator) Placeholder(img image.Image) (string, error) {
	b := img.Bounds()
	w, h := g.profile.FitInside(b.Dx(), b.Dy())

	small := imaging.Resize(img, w, h, imaging.Lanczos)
	if g.profile.Blur > 0 {
		small = imaging.Blur(small, g.profile.Blur)
	}

	enc, err := g.registry.Select(g.profile.Format, HasAlpha(small))
	if err != nil {
		return "", err
	}
	data, err := enc.Encode(small, g.profile.Quality)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", enc.Format(), err)
	}
	return dataurl.New(data, enc.MediaType()).String(), nil
}

// isSVG checks the extension hint first, then sniffs the content so an
// svg served without an extension is still recognized.
func isSVG(src *resolver.Source) bool {
	if resolver.IsVector(src.Format) {
		return true
	}
	return mimetype.Detect(src.Data).Is("image/svg+xml")
}

// HasAlpha reports whether any pixel is not fully opaque.
func HasAlpha(img image.Image) bool {
	if n, ok := img.(*image.NRGBA); ok {
		for i := 3; i < len(n.Pix); i += 4 {
			if n.Pix[i] < 255 {
				return true
			}
		}
		return false
	}
	switch img.(type) {
	case *image.YCbCr, *image.Gray, *image.Gray16, *image.CMYK:
		return false
	}
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			_, _, _, a := img.At(x, y).RGBA()
			if a < 0xffff {
				return true
			}
		}
	}
	return false
}
