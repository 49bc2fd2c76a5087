package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// PageStats tallies element outcomes for one or more pages.
type PageStats struct {
	Images         int `json:"images"`
	Processed      int `json:"processed"`
	SkippedDataURI int `json:"skipped_data_uri"`
	Unsupported    int `json:"unsupported"`
	SkippedRemote  int `json:"skipped_remote"`
	Failed         int `json:"failed"`
	SkippedNoSrc   int `json:"skipped_no_src"`
}

func (s *PageStats) add(o Outcome) {
	s.Images++
	switch o {
	case OutcomeProcessed:
		s.Processed++
	case OutcomeSkippedDataURI:
		s.SkippedDataURI++
	case OutcomeUnsupported:
		s.Unsupported++
	case OutcomeSkippedRemote:
		s.SkippedRemote++
	case OutcomeFailed:
		s.Failed++
	case OutcomeSkippedNoSrc:
		s.SkippedNoSrc++
	}
}

// Merge adds o into s.
func (s *PageStats) Merge(o PageStats) {
	s.Images += o.Images
	s.Processed += o.Processed
	s.SkippedDataURI += o.SkippedDataURI
	s.Unsupported += o.Unsupported
	s.SkippedRemote += o.SkippedRemote
	s.Failed += o.Failed
	s.SkippedNoSrc += o.SkippedNoSrc
}

// IsHTML reports whether outputPath names a page the transform rewrites.
func IsHTML(outputPath string) bool {
	return strings.EqualFold(filepath.Ext(outputPath), ".html")
}

// Transform rewrites every matched image in one generated page. Pages that
// are not HTML, that contain no matching element, or whose matches were all
// skipped untouched are returned as-is.
// Per-image failures are logged and counted; only parse and render
// failures are returned.
func (p *Pipeline) Transform(ctx context.Context, content, outputPath string) (string, PageStats, error) {
	var stats PageStats
	if !IsHTML(outputPath) {
		return content, stats, nil
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content, stats, fmt.Errorf("parse %s: %w", outputPath, err)
	}

	nodes := p.selector.MatchAll(doc)
	if len(nodes) == 0 {
		return content, stats, nil
	}
	p.log.Debug("found images", zap.String("page", outputPath), zap.Int("count", len(nodes)))

	outcomes := make([]Outcome, len(nodes))
	var wg sync.WaitGroup
	var sem chan struct{}
	if p.opts.MaxConcurrency > 0 {
		sem = make(chan struct{}, p.opts.MaxConcurrency)
	}
	for i, n := range nodes {
		wg.Add(1)
		go func(idx int, n *html.Node) {
			defer wg.Done()
			if sem != nil {
				sem <- struct{}{}
				defer func() { <-sem }()
			}
			outcomes[idx] = p.processImage(ctx, n, outputPath)
		}(i, n)
	}
	wg.Wait()

	mutated := false
	for _, o := range outcomes {
		stats.add(o)
		mutated = mutated || o.mutates()
	}
	if !mutated {
		return content, stats, nil
	}

	if p.cfg.AppendInitScript {
		appendInitScript(doc, p.script)
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return content, stats, fmt.Errorf("render %s: %w", outputPath, err)
	}

	p.log.Debug("processed images",
		zap.String("page", outputPath),
		zap.Int("processed", stats.Processed),
		zap.Int("failed", stats.Failed))
	return buf.String(), stats, nil
}
