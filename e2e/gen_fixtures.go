//go:build ignore

// gen_fixtures creates a tiny built site for the E2E smoke test.
// Usage: go run gen_fixtures.go <output_dir>
//
// Then: cd <output_dir> && lazyimg build .
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
)

const pageTemplate = `<!doctype html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
%s
</body>
</html>
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]
	mustMkdir(filepath.Join(dir, "img", "cards"))
	mustMkdir(filepath.Join(dir, "blog"))
	mustMkdir(filepath.Join(dir, "src", "img"))

	// Banner (JPEG, 400x225)
	writeJPEG(filepath.Join(dir, "img", "banner.jpg"), gradient(400, 225))

	// Cards (PNG, 200x150 each)
	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("card-%d.png", i)
		writeImage(filepath.Join(dir, "img", "cards", name), solidWithBorder(200, 150, uint8(i*60)))
	}

	// Small alpha image, only present in the source tree
	writeImage(filepath.Join(dir, "src", "img", "logo.png"), alphaGradient(100, 100))

	writeFile(filepath.Join(dir, "img", "icon.svg"),
		`<svg xmlns="http://www.w3.org/2000/svg" width="48" height="48"><circle cx="24" cy="24" r="20"/></svg>`)

	writeFile(filepath.Join(dir, "index.html"), fmt.Sprintf(pageTemplate, "home", `
<img src="/img/banner.jpg" alt="banner">
<img src="/img/cards/card-1.png" width="100">
<img src="/img/cards/card-2.png" srcset="/img/cards/card-2.png 1x, /img/cards/card-3.png 2x">
<img src="/img/logo.png" class="brand">
<img src="/img/icon.svg">
<img src="data:image/gif;base64,R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7">`))

	writeFile(filepath.Join(dir, "blog", "post.html"), fmt.Sprintf(pageTemplate, "post", `
<img src="../img/banner.jpg" height="90">
<img src="/img/missing.jpg">
<img src="/img/movie.avif">`))

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created site with 2 pages and 6 images in %s\n", dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

func solidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}

func mustMkdir(dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "mkdir %s: %v\n", dir, err)
		os.Exit(1)
	}
}

func writeJPEG(path string, img image.Image) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()
	jpeg.Encode(f, img, &jpeg.Options{Quality: 90})
}

func writeImage(path string, img image.Image) {
	f, err := os.Create(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()
	png.Encode(f, img)
}

func writeFile(path, content string) {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write %s: %v\n", path, err)
		os.Exit(1)
	}
}
