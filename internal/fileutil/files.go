package fileutil

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".gif": true, ".png": true, ".pgm": true}
	maskExts  = map[string]bool{".bmp": true}
	gtExts    = map[string]bool{".xml": true, ".gt": true, ".txt": true}
)

// Listing is the result of GetFiles.
type Listing struct {
	Images []string
	Masks  []string
	GT     []string
}

// GetFiles walks dir recursively and sorts its files by extension into
// images, masks and ground-truth files. Extensions are compared
// case-insensitively; archives and anything else are ignored. Paths are
// returned in lexical walk order.
func GetFiles(dir string) (*Listing, error) {
	var l Listing
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch ext := strings.ToLower(filepath.Ext(d.Name())); {
		case imageExts[ext]:
			l.Images = append(l.Images, path)
		case maskExts[ext]:
			l.Masks = append(l.Masks, path)
		case gtExts[ext]:
			l.GT = append(l.GT, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	return &l, nil
}

// baseName returns the file name of path without its extension.
func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
