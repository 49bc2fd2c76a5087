package cache

// Entry is the cached result of resolving one image reference.
type Entry struct {
	Width  int    `json:"width"`            // original image width
	Height int    `json:"height"`           // original image height
	Src    string `json:"src"`              // placeholder data URI
	Format string `json:"format,omitempty"` // normalized source format
	Hash   string `json:"hash,omitempty"`   // xxhash64 of the source bytes, 16 hex chars
}

// IsVector reports whether the entry describes an svg source, whose
// dimensions are never written to markup.
func (e Entry) IsVector() bool {
	return e.Format == "svg"
}

// HasDimensions reports whether both dimensions are known.
func (e Entry) HasDimensions() bool {
	return e.Width > 0 && e.Height > 0
}

// Usable reports whether the entry can be served to markup: it needs a
// placeholder, and raster entries need both dimensions.
func (e Entry) Usable() bool {
	return e.Src != "" && (e.IsVector() || e.HasDimensions())
}

// Stats aggregates store activity for the build report.
type Stats struct {
	Entries     int   `json:"entries"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Writes      int64 `json:"writes"`
	WriteErrors int64 `json:"write_errors,omitempty"`
}
