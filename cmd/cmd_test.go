package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/lazyimg-cli/internal/cache"
	"github.com/AnyUserName/lazyimg-cli/internal/pipeline"
	"github.com/AnyUserName/lazyimg-cli/internal/placeholder"
	"github.com/AnyUserName/lazyimg-cli/internal/profile"
	"github.com/AnyUserName/lazyimg-cli/internal/resolver"
)

func writePNG(t *testing.T, path string, w, h int, shade uint8) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: shade, G: uint8(x), B: uint8(y), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

// entryFor builds the cache entry the pipeline would store for path.
func entryFor(t *testing.T, path string) cache.Entry {
	t.Helper()
	src, err := resolver.New(resolver.Config{}).Resolve(context.Background(), path)
	require.NoError(t, err)
	e, err := placeholder.New(profile.Get(profile.DefaultName)).Generate(src)
	require.NoError(t, err)
	return e
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&logs)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	if err != nil {
		t.Logf("stderr: %s", logs.String())
	}
	return out.String(), err
}

func TestValidateCache(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	stale := filepath.Join(dir, "stale.png")
	writePNG(t, good, 40, 20, 10)
	writePNG(t, stale, 40, 20, 10)

	entries := map[string]cache.Entry{
		good:  entryFor(t, good),
		stale: entryFor(t, stale),
		"./gone.png": {
			Width: 1, Height: 1, Src: placeholder.TransparentGIF, Format: "png", Hash: "0123456789abcdef",
		},
		"./logo.svg": {Src: placeholder.TransparentGIF, Format: "svg"},
		"./zero.jpg": {Width: 0, Height: 10, Src: placeholder.TransparentGIF},
		"./text.jpg": {Width: 1, Height: 1, Src: "data:text/plain;base64,aGk="},
		"./raw.jpg":  {Width: 1, Height: 1, Src: "not a uri", Hash: "XYZ"},
		"./clip.avi": {Width: 1, Height: 1, Src: placeholder.TransparentGIF},
	}

	errs := validateCache(context.Background(), entries, nil)
	joined := strings.Join(errs, "\n")
	assert.Len(t, errs, 5, joined)
	assert.Contains(t, joined, `"./zero.jpg": invalid dimensions 0x10`)
	assert.Contains(t, joined, `"./text.jpg": placeholder media type text/plain`)
	assert.Contains(t, joined, `"./raw.jpg": placeholder is not a data URI`)
	assert.Contains(t, joined, `"./raw.jpg": malformed hash "XYZ"`)
	assert.Contains(t, joined, `"./clip.avi": unsupported image extension`)

	// Change one source on disk and re-check against the files.
	writePNG(t, stale, 40, 20, 200)
	errs = validateCache(context.Background(), entries, resolver.New(resolver.Config{}))
	joined = strings.Join(errs, "\n")
	assert.Len(t, errs, 7, joined)
	assert.Contains(t, joined, `"./gone.png": source not found`)
	assert.Contains(t, joined, stale+`": stale`)
	assert.NotContains(t, joined, good+`"`)
}

func TestPrintStats(t *testing.T) {
	entries := map[string]cache.Entry{
		"./a.jpg":             {Width: 10, Height: 10, Src: "data:image/jpeg;base64,AAAAAAAA", Format: "jpeg", Hash: "0123456789abcdef"},
		"./b.png":             {Width: 10, Height: 10, Src: "data:image/png;base64,AAAA", Format: "png"},
		"https://x.test/c.svg": {Src: placeholder.TransparentGIF, Format: "svg"},
	}
	var buf bytes.Buffer
	printStats(&buf, "cache.json", 2048, entries)
	out := buf.String()

	assert.Contains(t, out, "cache.json (2.0 KB)")
	assert.Contains(t, out, "Entries:          3")
	assert.Contains(t, out, "Local / remote:   2 / 1")
	assert.Contains(t, out, "Content hashes:   1 / 3 entries")
	assert.Contains(t, out, "Top 2 heaviest placeholders:")
	assert.Contains(t, out, "SVG entries:      1")
	assert.Less(t, strings.Index(out, "jpeg"), strings.Index(out, "png"))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 KB", formatBytes(1536))
	assert.Equal(t, "2.0 MB", formatBytes(2<<20))
	assert.Equal(t, "...cdef", truncKey("abcdef0123456789abcdef", 7))
	assert.Equal(t, "short", truncKey("short", 7))
}

func TestBuildStatsValidateCommands(t *testing.T) {
	site := t.TempDir()
	writePNG(t, filepath.Join(site, "img", "hero.png"), 120, 60, 30)
	page := `<html><head></head><body><img src="/img/hero.png" width="60"></body></html>`
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte(page), 0o644))

	cacheFile := filepath.Join(t.TempDir(), "lazy.json")
	noConfig := filepath.Join(t.TempDir(), "absent.yaml")

	out, err := execute(t, "build", site, "--config", noConfig, "--cache-file", cacheFile, "--json", "--workers", "1")
	require.NoError(t, err, out)

	var report pipeline.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.Pages)
	assert.Equal(t, 1, report.Rewritten)
	assert.Equal(t, 1, report.Images.Processed)

	html, err := os.ReadFile(filepath.Join(site, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), `data-src="/img/hero.png"`)
	assert.Contains(t, string(html), `height="30"`)

	entries, err := cache.ReadFile(cacheFile)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	out, err = execute(t, "stats", cacheFile, "--config", noConfig)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Entries:          1")

	out, err = execute(t, "validate", cacheFile, "--config", noConfig, "--check-sources")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Cache file is valid")
}

func TestBuildRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(f, []byte("<p>"), 0o644))
	_, err := execute(t, "build", f, "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}
