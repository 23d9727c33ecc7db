// Package dirtree builds a tag tree from a plain directory hierarchy:
// every subdirectory becomes a tag and every media file beneath it an
// image or video. It is useful for libraries that are organized on
// disk rather than in a cataloguing application.
package dirtree

import (
	"fmt"
	"io/fs"
	"mime"
	"path/filepath"
	"strings"

	"github.com/moses-palmer/photofs/source"
	"github.com/moses-palmer/photofs/tree"
)

func init() {
	source.Register("dirtree", func(cfg source.Config) (source.Source, error) {
		return source.NewFileSource(&Loader{dateFormat: cfg.DateFormat}, cfg)
	})
}

// Loader scans a directory tree for media files.
type Loader struct {
	dateFormat string
}

// DefaultLocation fails; a directory must be passed explicitly.
func (l *Loader) DefaultLocation() (string, error) {
	return "", fmt.Errorf("the dirtree source requires an explicit directory")
}

// LoadTags walks the directory at path and populates root. Hidden
// entries and files that are neither images nor videos are skipped.
func (l *Loader) LoadTags(path string, root *tree.Tag) error {
	return filepath.WalkDir(path, func(entry string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry != path && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !isMedia(entry) {
			return nil
		}

		relative, err := filepath.Rel(path, filepath.Dir(entry))
		if err != nil {
			return err
		}

		tag := root
		if relative != "." {
			tag, err = source.MakeTags(root, "/"+filepath.ToSlash(relative))
			if err != nil {
				return err
			}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		name := d.Name()
		title := strings.TrimSuffix(name, filepath.Ext(name))

		return tag.Add(tree.NewImage(
			title,
			entry,
			info.ModTime(),
			tree.InferVideo(entry),
			l.dateFormat))
	})
}

// isMedia reports whether the file name denotes an image or a video.
func isMedia(name string) bool {
	if tree.InferVideo(name) {
		return true
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	return strings.HasPrefix(mimeType, "image/")
}
