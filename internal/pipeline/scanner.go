package pipeline

import (
	"os"
	"path/filepath"
	"strings"
)

// Page represents a generated HTML file in the site directory.
type Page struct {
	// Path is the file path, rooted at the site directory as given.
	Path string
	// RelPath is the path relative to the site directory, with forward
	// slashes.
	RelPath string
	// Size is the file size in bytes.
	Size int64
}

// ScanPages walks siteDir and returns every HTML page. Hidden directories
// are skipped.
func ScanPages(siteDir string) ([]Page, error) {
	var pages []Page

	err := filepath.Walk(siteDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if path != siteDir && strings.HasPrefix(info.Name(), ".") && info.Name() != "." {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || !IsHTML(path) {
			return nil
		}

		relPath, err := filepath.Rel(siteDir, path)
		if err != nil {
			return err
		}
		pages = append(pages, Page{
			Path:    path,
			RelPath: filepath.ToSlash(relPath),
			Size:    info.Size(),
		})
		return nil
	})

	return pages, err
}
