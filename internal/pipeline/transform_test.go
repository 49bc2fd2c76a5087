package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/lazyimg-cli/internal/cache"
	"github.com/AnyUserName/lazyimg-cli/internal/config"
	"github.com/AnyUserName/lazyimg-cli/internal/placeholder"
	"github.com/AnyUserName/lazyimg-cli/internal/resolver"
)

func TestTransform_SingleImage(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "photo.jpg"), 320, 180)
	p, gen := newTestPipeline(t, root, nil)

	out, stats, err := p.Transform(context.Background(), page(`<img src="/photo.jpg" alt="a photo">`), "index.html")
	require.NoError(t, err)
	assert.Equal(t, PageStats{Images: 1, Processed: 1}, stats)
	assert.Equal(t, int64(1), gen.calls.Load())

	imgs := images(t, out)
	require.Len(t, imgs, 1)
	img := imgs[0]
	assert.Equal(t, "/photo.jpg", img["data-src"])
	assert.Contains(t, strings.Fields(img["class"]), "lazyload")
	assert.True(t, strings.HasPrefix(img["src"], "data:image/jpeg;base64,"), img["src"])
	assert.Equal(t, "320", img["width"])
	assert.Equal(t, "180", img["height"])
	assert.Equal(t, "a photo", img["alt"])
	_, hasLoading := img["loading"]
	assert.False(t, hasLoading)
}

func TestTransform_DataURIUntouched(t *testing.T) {
	p, gen := newTestPipeline(t, t.TempDir(), nil)
	in := page(`<img src="data:image/png;base64,AAAA">`)

	out, stats, err := p.Transform(context.Background(), in, "index.html")
	require.NoError(t, err)
	assert.Equal(t, PageStats{Images: 1, SkippedDataURI: 1}, stats)
	assert.Equal(t, int64(0), gen.calls.Load())
	assert.Equal(t, in, out)
}

func TestTransform_UntouchedElementsKeepPageBytes(t *testing.T) {
	p, _ := newTestPipeline(t, t.TempDir(), nil)
	in := "<!doctype html>\n<html><body>\n" +
		`<img src="data:image/png;base64,AAAA" class="x">` + "\n" +
		`<img alt="no source">` + "\n</body></html>\n"

	out, stats, err := p.Transform(context.Background(), in, "index.html")
	require.NoError(t, err)
	assert.Equal(t, PageStats{Images: 2, SkippedDataURI: 1, SkippedNoSrc: 1}, stats)
	assert.Equal(t, in, out)
	assert.NotContains(t, out, initScriptAttr)
}

func TestTransform_DataURICaseInsensitive(t *testing.T) {
	p, _ := newTestPipeline(t, t.TempDir(), nil)
	out, stats, err := p.Transform(context.Background(), page(`<img src="DATA:image/gif;base64,R0lG">`), "index.html")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedDataURI)
	_, hasDataSrc := images(t, out)[0]["data-src"]
	assert.False(t, hasDataSrc)
}

func TestTransform_SameFileTwice(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"), 64, 48)
	p, gen := newTestPipeline(t, root, nil)
	ctx := context.Background()

	first, _, err := p.Transform(ctx, page(`<img src="/a.jpg">`), "one.html")
	require.NoError(t, err)
	second, _, err := p.Transform(ctx, page(`<img src="/a.jpg">`), "two.html")
	require.NoError(t, err)

	assert.Equal(t, int64(1), gen.calls.Load())
	a, b := images(t, first)[0], images(t, second)[0]
	assert.Equal(t, a["src"], b["src"])
	assert.Equal(t, "64", a["width"])
	assert.Equal(t, a["width"], b["width"])
	assert.Equal(t, a["height"], b["height"])
	assert.Equal(t, cache.Stats{Entries: 1, Hits: 1, Misses: 1}, p.Cache().Stats())
}

func TestTransform_ManyImagesConcurrently(t *testing.T) {
	root := t.TempDir()
	var body strings.Builder
	for i := 0; i < 12; i++ {
		name := filepath.Join(root, "img", string(rune('a'+i))+".jpg")
		writeJPEG(t, name, 30+i, 20)
		body.WriteString(`<img src="/img/` + string(rune('a'+i)) + `.jpg">`)
	}
	p, gen := newTestPipeline(t, root, nil)
	p.opts.MaxConcurrency = 3

	out, stats, err := p.Transform(context.Background(), page(body.String()), "index.html")
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Processed)
	assert.Equal(t, int64(12), gen.calls.Load())
	for i, img := range images(t, out) {
		assert.Equal(t, "20", img["height"])
		assert.Equal(t, strconv.Itoa(30+i), img["width"], img["data-src"])
	}
}

func TestTransform_PersistedCacheSurvivesRestart(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "p.jpg"), 90, 60)
	cacheFile := filepath.Join(t.TempDir(), "lazy.json")
	in := page(`<img src="/p.jpg">`)

	build := func() (string, *countingGenerator) {
		cfg := config.DefaultConfig()
		cfg.CacheFile = cacheFile
		p, err := New(cfg, Options{PathTransform: resolver.SiteTransform(root)})
		require.NoError(t, err)
		gen := &countingGenerator{inner: p.generator}
		p.generator = gen
		out, _, err := p.Transform(context.Background(), in, "index.html")
		require.NoError(t, err)
		p.Close()
		return out, gen
	}

	out1, gen1 := build()
	out2, gen2 := build()
	assert.Equal(t, int64(1), gen1.calls.Load())
	assert.Equal(t, int64(0), gen2.calls.Load())
	assert.Equal(t, out1, out2)

	entries, err := cache.ReadFile(cacheFile)
	require.NoError(t, err)
	require.Contains(t, entries, filepath.ToSlash(filepath.Join(root, "p.jpg")))
}

func TestTransform_FallbackDirUnderSiteRoot(t *testing.T) {
	dir := t.TempDir()
	site := filepath.Join(dir, "_site")
	writeJPEG(t, filepath.Join(dir, "src", "img", "a.jpg"), 30, 20)
	p, _ := newTestPipeline(t, site, func(c *config.Config) {
		c.RootDir = site
		c.FallbackDir = filepath.Join(dir, "src")
	})

	out, stats, err := p.Transform(context.Background(), page(`<img src="/img/a.jpg">`), filepath.Join(site, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, PageStats{Images: 1, Processed: 1}, stats)
	img := images(t, out)[0]
	assert.Equal(t, "/img/a.jpg", img["data-src"])
	assert.Equal(t, "30", img["width"])
	assert.Equal(t, "20", img["height"])
}

func TestTransform_NonHTMLPassesThrough(t *testing.T) {
	p, _ := newTestPipeline(t, t.TempDir(), nil)
	in := `<img src="/a.jpg">`
	for _, path := range []string{"feed.xml", "style.css", "", "index.htm"} {
		out, stats, err := p.Transform(context.Background(), in, path)
		require.NoError(t, err)
		assert.Equal(t, in, out, path)
		assert.Zero(t, stats.Images)
	}
}

func TestTransform_NoMatchesReturnsInput(t *testing.T) {
	p, _ := newTestPipeline(t, t.TempDir(), nil)
	in := "<p>no images here\n"
	out, _, err := p.Transform(context.Background(), in, "index.html")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestTransform_CustomSelector(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"), 10, 10)
	p, _ := newTestPipeline(t, root, func(c *config.Config) { c.ImgSelector = "main img" })

	out, stats, err := p.Transform(context.Background(),
		page(`<header><img src="/a.jpg" id="logo"></header><main><img src="/a.jpg"></main>`), "index.html")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	imgs := images(t, out)
	assert.Equal(t, "/a.jpg", imgs[0]["src"])
	assert.Equal(t, "/a.jpg", imgs[1]["data-src"])
	assert.Contains(t, out, `)("main img",`)
}

func TestTransform_AppendsScriptOnce(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"), 10, 10)
	p, _ := newTestPipeline(t, root, nil)
	ctx := context.Background()

	out, _, err := p.Transform(ctx, page(`<img src="/a.jpg">`), "index.html")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, config.DefaultScriptSrc))
	assert.True(t, strings.HasSuffix(out, "</script></body></html>"))

	again, _, err := p.Transform(ctx, out, "index.html")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(again, config.DefaultScriptSrc))
	assert.Equal(t, out, again)
}

func TestTransform_NoScriptWhenDisabled(t *testing.T) {
	root := t.TempDir()
	writeJPEG(t, filepath.Join(root, "a.jpg"), 10, 10)
	p, _ := newTestPipeline(t, root, func(c *config.Config) { c.AppendInitScript = false })

	out, _, err := p.Transform(context.Background(), page(`<img src="/a.jpg">`), "index.html")
	require.NoError(t, err)
	assert.NotContains(t, out, "<script")
}

func TestTransform_Remote(t *testing.T) {
	data := pngBytes(t, 40, 30)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pic.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, t.TempDir(), nil)
	out, stats, err := p.Transform(context.Background(),
		page(`<img src="`+srv.URL+`/pic.png"><img src="`+srv.URL+`/gone.png">`), "index.html")
	require.NoError(t, err)
	assert.Equal(t, PageStats{Images: 2, Processed: 1, Failed: 1}, stats)

	imgs := images(t, out)
	assert.Equal(t, "40", imgs[0]["width"])
	assert.Equal(t, "30", imgs[0]["height"])
	assert.Equal(t, srv.URL+"/gone.png", imgs[1]["src"])
	assert.Equal(t, srv.URL+"/gone.png", imgs[1]["data-src"])
	_, hasWidth := imgs[1]["width"]
	assert.False(t, hasWidth)
}

func TestTransform_RemoteDisabled(t *testing.T) {
	p, gen := newTestPipeline(t, t.TempDir(), func(c *config.Config) { c.Fetch.Enabled = false })
	out, stats, err := p.Transform(context.Background(),
		page(`<img src="https://images.example.test/a.jpg">`), "index.html")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedRemote)
	assert.Equal(t, int64(0), gen.calls.Load())

	img := images(t, out)[0]
	assert.Equal(t, "https://images.example.test/a.jpg", img["src"])
	assert.Equal(t, "https://images.example.test/a.jpg", img["data-src"])
	assert.Equal(t, "lazyload", img["class"])
}

func TestTransform_SVG(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "logo.svg"), `<svg xmlns="http://www.w3.org/2000/svg" width="80" height="20"></svg>`)
	p, _ := newTestPipeline(t, root, nil)

	out, stats, err := p.Transform(context.Background(), page(`<img src="/logo.svg">`), "index.html")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
	img := images(t, out)[0]
	assert.Equal(t, placeholder.TransparentGIF, img["src"])
	assert.Equal(t, "/logo.svg", img["data-src"])
	_, hasWidth := img["width"]
	_, hasHeight := img["height"]
	assert.False(t, hasWidth)
	assert.False(t, hasHeight)
}

func TestPageStatsMerge(t *testing.T) {
	var total PageStats
	total.Merge(PageStats{Images: 2, Processed: 1, Failed: 1})
	total.Merge(PageStats{Images: 4, SkippedDataURI: 1, Unsupported: 1, SkippedRemote: 1, SkippedNoSrc: 1})
	assert.Equal(t, PageStats{Images: 6, Processed: 1, Failed: 1, SkippedDataURI: 1, Unsupported: 1, SkippedRemote: 1, SkippedNoSrc: 1}, total)
}

func TestIsHTML(t *testing.T) {
	assert.True(t, IsHTML("a/b/index.html"))
	assert.True(t, IsHTML("INDEX.HTML"))
	assert.False(t, IsHTML("index.htm"))
	assert.False(t, IsHTML(""))
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
