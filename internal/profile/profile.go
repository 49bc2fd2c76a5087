package profile

// Profile defines placeholder generation parameters.
type Profile struct {
	Name      string
	MaxWidth  int     // placeholder box width
	MaxHeight int     // placeholder box height
	Quality   int     // encoding quality 1-100 (lossy formats only)
	Blur      float64 // gaussian sigma applied after downscale, 0 = none
	Format    string  // forced placeholder format, "" = by alpha
}

// Built-in profiles.
var profiles = map[string]Profile{
	"lqip": {
		Name:      "lqip",
		MaxWidth:  25,
		MaxHeight: 25,
		Quality:   60,
		Blur:      0.8,
	},
	"tiny": {
		Name:      "tiny",
		MaxWidth:  12,
		MaxHeight: 12,
		Quality:   50,
		Blur:      0.5,
	},
	"soft": {
		Name:      "soft",
		MaxWidth:  48,
		MaxHeight: 48,
		Quality:   55,
		Blur:      2.5,
	},
}

// DefaultName is the profile used when none is configured.
const DefaultName = "lqip"

// Get returns a profile by name. Falls back to lqip if unknown.
func Get(name string) Profile {
	if p, ok := profiles[name]; ok {
		return p
	}
	p := profiles[DefaultName]
	if name != "" {
		p.Name = name // preserve requested name
	}
	return p
}

// Names returns the built-in profile names.
func Names() []string {
	return []string{"lqip", "tiny", "soft"}
}

// Override returns a copy of p with every non-zero size and quality
// applied. A non-nil blur always replaces the sigma, so 0 turns blur off.
func (p Profile) Override(maxWidth, maxHeight, quality int, blur *float64) Profile {
	if maxWidth > 0 {
		p.MaxWidth = maxWidth
	}
	if maxHeight > 0 {
		p.MaxHeight = maxHeight
	}
	if quality > 0 {
		p.Quality = quality
	}
	if blur != nil {
		p.Blur = *blur
	}
	return p
}

// FitInside returns the largest size with the aspect ratio of w×h that
// fits inside the profile box. Images already inside the box keep their
// size.
func (p Profile) FitInside(w, h int) (int, int) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	if w <= p.MaxWidth && h <= p.MaxHeight {
		return w, h
	}
	sw := float64(p.MaxWidth) / float64(w)
	sh := float64(p.MaxHeight) / float64(h)
	scale := sw
	if sh < sw {
		scale = sh
	}
	nw := int(float64(w)*scale + 0.5)
	nh := int(float64(h)*scale + 0.5)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	return nw, nh
}
