package pipeline

import (
	"context"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/AnyUserName/lazyimg-cli/internal/cache"
	"github.com/AnyUserName/lazyimg-cli/internal/resolver"
)

// Outcome classifies what happened to one matched element.
type Outcome int

const (
	// OutcomeProcessed means the placeholder and dimensions were applied.
	OutcomeProcessed Outcome = iota
	// OutcomeSkippedDataURI means src was already a data URI; the element
	// is left untouched.
	OutcomeSkippedDataURI
	// OutcomeUnsupported means the element was marked for lazy loading but
	// its format has no placeholder support.
	OutcomeUnsupported
	// OutcomeSkippedRemote means the element was marked for lazy loading
	// but remote fetching is disabled.
	OutcomeSkippedRemote
	// OutcomeFailed means resolving or decoding the image failed.
	OutcomeFailed
	// OutcomeSkippedNoSrc means the element has no src; it is left
	// untouched.
	OutcomeSkippedNoSrc
)

func (o Outcome) String() string {
	switch o {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkippedDataURI:
		return "skipped-data-uri"
	case OutcomeUnsupported:
		return "unsupported"
	case OutcomeSkippedRemote:
		return "skipped-remote"
	case OutcomeFailed:
		return "failed"
	case OutcomeSkippedNoSrc:
		return "skipped-no-src"
	}
	return "unknown"
}

// mutates reports whether the element was rewritten.
func (o Outcome) mutates() bool {
	return o != OutcomeSkippedDataURI && o != OutcomeSkippedNoSrc
}

// processImage rewrites a single matched element. It only touches n and
// the shared cache, so calls for different elements may run concurrently.
// Errors are logged here and never propagate.
func (p *Pipeline) processImage(ctx context.Context, n *html.Node, outputPath string) Outcome {
	src, _ := getAttr(n, "src")
	if src == "" {
		p.log.Debug("skipping element without src", zap.String("page", outputPath))
		return OutcomeSkippedNoSrc
	}
	if isDataURI(src) {
		p.log.Debug("skipping data uri", zap.String("page", outputPath))
		return OutcomeSkippedDataURI
	}

	ref := p.transform(src, resolver.PathContext{OutputPath: outputPath})
	ext := resolver.DetectExtension(ref)

	if p.cfg.PreferNativeLazyLoad {
		if _, ok := getAttr(n, "loading"); !ok {
			setAttr(n, "loading", "lazy")
		}
	}

	setAttr(n, "data-src", src)
	if srcset, ok := getAttr(n, "srcset"); ok {
		setAttr(n, "data-srcset", srcset)
		removeAttr(n, "srcset")
	}
	addClasses(n, p.cfg.ClassName)

	if !resolver.Supported(ext) {
		p.log.Debug("placeholder not supported",
			zap.String("ref", ref), zap.String("ext", ext))
		return OutcomeUnsupported
	}
	if resolver.IsRemote(ref) && !p.cfg.Fetch.Enabled {
		p.log.Debug("remote fetch disabled", zap.String("ref", ref))
		return OutcomeSkippedRemote
	}

	entry, err := p.imageData(ctx, ref)
	if err != nil {
		p.log.Warn("image processing failed",
			zap.String("ref", ref),
			zap.String("page", outputPath),
			zap.Error(err))
		return OutcomeFailed
	}

	setAttr(n, "src", entry.Src)
	if !entry.IsVector() {
		applyDimensions(n, entry.Width, entry.Height)
	}
	return OutcomeProcessed
}

// imageData serves ref from the cache or generates and stores it.
// Concurrent misses for the same ref may both generate; the results are
// identical.
func (p *Pipeline) imageData(ctx context.Context, ref string) (cache.Entry, error) {
	if e, ok := p.cache.Get(ref); ok {
		return e, nil
	}

	p.log.Debug("started processing", zap.String("ref", ref))
	src, err := p.resolver.Resolve(ctx, ref)
	if err != nil {
		return cache.Entry{}, err
	}
	e, err := p.generator.Generate(src)
	if err != nil {
		return cache.Entry{}, err
	}
	p.cache.Put(ref, e)
	p.log.Debug("finished processing",
		zap.String("ref", ref),
		zap.Int("width", e.Width),
		zap.Int("height", e.Height))
	return e, nil
}

// applyDimensions fills width and height from the true size w×h. A single
// declared axis is kept and the other derived from the aspect ratio; when
// both are declared, or the declared one cannot be parsed, nothing changes.
func applyDimensions(n *html.Node, w, h int) {
	if w <= 0 || h <= 0 {
		return
	}
	ws, hasW := getAttr(n, "width")
	hs, hasH := getAttr(n, "height")
	hasW = hasW && strings.TrimSpace(ws) != ""
	hasH = hasH && strings.TrimSpace(hs) != ""

	switch {
	case !hasW && !hasH:
		setAttr(n, "width", strconv.Itoa(w))
		setAttr(n, "height", strconv.Itoa(h))
	case hasW && !hasH:
		dw, ok := parseLength(ws)
		if !ok {
			return
		}
		setAttr(n, "height", strconv.Itoa(int(math.Round(dw*float64(h)/float64(w)))))
	case !hasW && hasH:
		dh, ok := parseLength(hs)
		if !ok {
			return
		}
		setAttr(n, "width", strconv.Itoa(int(math.Round(dh*float64(w)/float64(h)))))
	}
}

// parseLength reads a declared pixel length such as "320", "320px" or
// "320.5".
func parseLength(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	s = strings.TrimSuffix(s, "px")
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

func isDataURI(src string) bool {
	return len(src) >= 5 && strings.EqualFold(src[:5], "data:")
}
