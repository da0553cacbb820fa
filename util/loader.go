package util

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/nvr-ai/go-frcnn/images"
	"github.com/pkg/errors"
)

// DefaultSampleImages are the demo images looked up in the data directory.
var DefaultSampleImages = []string{
	"000456.jpg",
	"000542.jpg",
	"001150.jpg",
	"001763.jpg",
	"004545.jpg",
}

// ImageFile represents an image file.
type ImageFile struct {
	// Path is the path to the image file.
	Path string
	// Name is the base name of the file.
	Name string
}

// ResolveImages joins names onto dir and checks that each file exists.
//
// Arguments:
// - dir: Directory holding the images.
// - names: File names, in run order. Empty means DefaultSampleImages.
//
// Returns:
// - []ImageFile: The images, in the order given.
// - error: Error naming the first missing file.
func ResolveImages(dir string, names []string) ([]ImageFile, error) {
	if len(names) == 0 {
		names = DefaultSampleImages
	}
	files := make([]ImageFile, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil {
			return nil, errors.Wrapf(err, "image %s", path)
		}
		if info.IsDir() {
			return nil, errors.Errorf("image %s is a directory", path)
		}
		files = append(files, ImageFile{Path: path, Name: name})
	}
	return files, nil
}

// LoadDirectoryImageFiles lists all image files in a directory.
//
// Arguments:
// - dir: Directory path containing image files.
//
// Returns:
// - []ImageFile: The images, sorted by name.
// - error: Error if the directory cannot be read.
func LoadDirectoryImageFiles(dir string) ([]ImageFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []ImageFile
	for _, entry := range entries {
		if entry.IsDir() || !images.IsImagePath(entry.Name()) {
			continue
		}
		files = append(files, ImageFile{
			Path: filepath.Join(dir, entry.Name()),
			Name: entry.Name(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}
