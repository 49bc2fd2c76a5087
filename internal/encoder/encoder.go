package encoder

import (
	"image"
)

// Encoder encodes a placeholder image to a specific format.
type Encoder interface {
	// Format returns the output format name (e.g. "jpeg", "png").
	Format() string

	// MediaType returns the MIME type used in the data URI.
	MediaType() string

	// Encode converts the image to bytes at the given quality (1-100).
	// Lossless encoders ignore quality.
	Encode(img image.Image, quality int) ([]byte, error)
}
