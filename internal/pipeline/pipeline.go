// Package pipeline rewrites <img> markup in generated pages: it resolves
// each image, serves its dimensions and placeholder through the cache, and
// mutates the element for lazy loading.
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/andybalholm/cascadia"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AnyUserName/lazyimg-cli/internal/cache"
	"github.com/AnyUserName/lazyimg-cli/internal/config"
	"github.com/AnyUserName/lazyimg-cli/internal/logging"
	"github.com/AnyUserName/lazyimg-cli/internal/placeholder"
	"github.com/AnyUserName/lazyimg-cli/internal/profile"
	"github.com/AnyUserName/lazyimg-cli/internal/resolver"
)

// Options carries the parts of the setup that cannot come from a config
// file.
type Options struct {
	// PathTransform maps markup src values to lookup references. Defaults
	// to resolver.RootedTransform(cfg.RootDir).
	PathTransform resolver.PathTransform
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// HTTPClient is used for remote fetches when set.
	HTTPClient *http.Client
	// MaxConcurrency bounds image goroutines per page. Zero is unbounded.
	MaxConcurrency int
}

type imageGenerator interface {
	Generate(src *resolver.Source) (cache.Entry, error)
}

// Pipeline holds the build-wide state: configuration, compiled selector,
// cache, resolver and generator. It is safe for concurrent Transform calls.
type Pipeline struct {
	cfg       *config.Config
	opts      Options
	log       *zap.Logger
	selector  cascadia.Selector
	transform resolver.PathTransform
	cache     *cache.Store
	resolver  *resolver.Resolver
	generator imageGenerator
	script    string
	workers   int
}

// New builds a pipeline from cfg. An invalid selector is reported here.
func New(cfg *config.Config, opts Options) (*Pipeline, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := logging.OrNop(opts.Logger)

	sel, err := cascadia.Compile(cfg.ImgSelector)
	if err != nil {
		return nil, fmt.Errorf("invalid img_selector %q: %w", cfg.ImgSelector, err)
	}

	transform := opts.PathTransform
	if transform == nil {
		transform = resolver.RootedTransform(cfg.RootDir)
	}

	prof := profile.Get(cfg.Placeholder.Profile).Override(
		cfg.Placeholder.MaxWidth,
		cfg.Placeholder.MaxHeight,
		cfg.Placeholder.Quality,
		cfg.Placeholder.Blur,
	)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Pipeline{
		cfg:       cfg,
		opts:      opts,
		log:       log,
		selector:  sel,
		transform: transform,
		cache:     cache.Open(cfg.CacheFile, log),
		resolver: resolver.New(resolver.Config{
			FallbackDir: cfg.FallbackDir,
			RootDir:     cfg.RootDir,
			Client:      opts.HTTPClient,
			Timeout:     cfg.Fetch.Timeout,
			MaxBytes:    cfg.Fetch.MaxBytes,
			UserAgent:   cfg.Fetch.UserAgent,
		}),
		generator: placeholder.New(prof),
		script:    initScript(cfg.ImgSelector, cfg.ScriptSrc, cfg.PreferNativeLazyLoad),
		workers:   workers,
	}, nil
}

// Cache exposes the resolution cache.
func (p *Pipeline) Cache() *cache.Store { return p.cache }

// Close flushes pending cache writes and stops the cache writer.
func (p *Pipeline) Close() {
	p.cache.Close()
}

// Report summarizes a Run.
type Report struct {
	Pages      int           `json:"pages"`
	Rewritten  int           `json:"rewritten"`
	PageErrors int           `json:"page_errors"`
	Images     PageStats     `json:"images"`
	Cache      cache.Stats   `json:"cache"`
	Workers    int           `json:"workers"`
	Duration   time.Duration `json:"duration"`
}

// Run transforms every HTML page under siteDir in place. Pages that fail
// to parse or render are logged and left untouched; only scan errors and
// cancellation are returned.
func (p *Pipeline) Run(ctx context.Context, siteDir string) (*Report, error) {
	start := time.Now()

	pages, err := ScanPages(siteDir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	p.log.Info("found pages", zap.String("dir", siteDir), zap.Int("count", len(pages)))

	report := &Report{Pages: len(pages), Workers: p.workers}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for _, page := range pages {
		page := page
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stats, changed, err := p.transformFile(gctx, page)

			mu.Lock()
			defer mu.Unlock()
			report.Images.Merge(stats)
			if err != nil {
				report.PageErrors++
				p.log.Error("page transform failed",
					zap.String("page", page.RelPath), zap.Error(err))
				return nil
			}
			if changed {
				report.Rewritten++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	p.cache.Flush()
	report.Cache = p.cache.Stats()
	report.Duration = time.Since(start)
	return report, nil
}

// transformFile rewrites one page on disk when the transform changed it.
func (p *Pipeline) transformFile(ctx context.Context, page Page) (PageStats, bool, error) {
	info, err := os.Stat(page.Path)
	if err != nil {
		return PageStats{}, false, err
	}
	data, err := os.ReadFile(page.Path)
	if err != nil {
		return PageStats{}, false, fmt.Errorf("read %s: %w", page.RelPath, err)
	}

	out, stats, err := p.Transform(ctx, string(data), page.Path)
	if err != nil {
		return stats, false, err
	}
	if out == string(data) {
		return stats, false, nil
	}
	if err := os.WriteFile(page.Path, []byte(out), info.Mode().Perm()); err != nil {
		return stats, false, fmt.Errorf("write %s: %w", page.RelPath, err)
	}
	return stats, true, nil
}
