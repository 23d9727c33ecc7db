// Package source provides the backends that populate the virtual tag
// tree. A source owns the root of one tree, knows how to rebuild it
// from an external catalog, and detects when the catalog has changed.
package source

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/moses-palmer/photofs/log"
	"github.com/moses-palmer/photofs/tree"
)

var (
	// ErrNotFound is returned by Locate when a path segment does not
	// exist in the current tree.
	ErrNotFound = errors.New("photofs: no such image or tag")

	// ErrInvalidPath is returned for paths that do not begin with a
	// slash. This indicates a caller programming error, not a missing
	// entry.
	ErrInvalidPath = errors.New("photofs: path is not absolute")

	// ErrConfig is returned for configuration problems: an unknown
	// source name or a catalog that cannot be located.
	ErrConfig = errors.New("photofs: invalid configuration")
)

// Config carries the settings a source needs at construction. It is
// produced by the command line layer and passed explicitly; sources
// never consult process-wide state.
type Config struct {
	// Database overrides the default location of the backend
	// catalog. When empty, the loader's DefaultLocation is used.
	Database string

	// DateFormat names images that have no title. Empty selects
	// tree.DefaultDateFormat.
	DateFormat string

	// Watch enables immediate staleness detection through a
	// filesystem watcher on the catalog, in addition to the
	// timestamp comparison performed on every refresh.
	Watch bool

	// Logger receives diagnostics. When nil a discarding logger is
	// used.
	Logger *log.Logger
}

// Source is a provider of one tag tree built from a backend catalog.
type Source interface {
	// Refresh rebuilds the tree if the backend catalog has changed
	// since the last refresh, and is a cheap no-op otherwise.
	Refresh() error

	// Locate resolves an absolute slash-separated path to an image
	// or tag. The empty path and "/" resolve to the root tag.
	// Locate does not refresh; callers decide when to refresh.
	Locate(path string) (tree.Item, error)

	// Root returns the root tag of the current tree.
	Root() *tree.Tag

	// Path returns the location of the backend catalog.
	Path() string

	// Timestamp returns the backend modification time observed by
	// the last rebuild.
	Timestamp() time.Time

	// Close releases the watcher and any backend resources.
	Close() error
}

// Loader is the backend-specific part of a file-backed source. LoadTags
// must be idempotent: it is invoked against a fresh, empty root on
// every rebuild.
type Loader interface {
	// DefaultLocation resolves the platform default location of the
	// backend catalog. It returns an error when no catalog can be
	// found.
	DefaultLocation() (string, error)

	// LoadTags populates root with tags and images read from the
	// catalog at path.
	LoadTags(path string, root *tree.Tag) error
}

// FileSource implements Source for backends whose catalog is a single
// file. Staleness is judged by the file modification time, compared
// with != so that backward clock jumps also trigger a reload.
//
// The tree is rebuilt wholesale under the write lock and published
// only once complete; concurrent Locate calls either see the previous
// generation or the new one, never a partial tree.
type FileSource struct {
	mu        sync.RWMutex
	root      *tree.Tag
	timestamp time.Time
	stale     bool

	path    string
	loader  Loader
	watcher *watcher
	log     *log.Logger

	// reloads counts completed tree rebuilds. Exposed for tests.
	reloads int
}

// NewFileSource creates a source reading from the catalog file named
// by cfg.Database, or the loader's default location when unset.
func NewFileSource(loader Loader, cfg Config) (*FileSource, error) {
	path := cfg.Database
	if path == "" {
		location, err := loader.DefaultLocation()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
		path = location
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Discard()
	}

	s := &FileSource{
		root:   tree.NewTag("", nil),
		stale:  true,
		path:   path,
		loader: loader,
		log:    logger,
	}

	if cfg.Watch {
		w, err := newWatcher(path, s.markStale, logger)
		if err != nil {
			return nil, err
		}
		s.watcher = w
	}

	return s, nil
}

// Path returns the location of the backend catalog.
func (s *FileSource) Path() string {
	return s.path
}

// Timestamp returns the backend modification time observed by the last
// rebuild.
func (s *FileSource) Timestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.timestamp
}

// Root returns the root tag of the current tree.
func (s *FileSource) Root() *tree.Tag {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.root
}

// Reloads returns the number of completed tree rebuilds.
func (s *FileSource) Reloads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.reloads
}

func (s *FileSource) markStale() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stale = true
}

// Refresh rebuilds the tree from the catalog if its modification time
// differs from the one recorded by the previous rebuild, or if the
// watcher has flagged a change. Unchanged catalogs make this a no-op.
func (s *FileSource) Refresh() error {
	info, err := os.Stat(s.path)
	if err != nil {
		return fmt.Errorf("photofs: stat %s: %w", s.path, err)
	}
	mtime := info.ModTime()

	s.mu.RLock()
	unchanged := !s.stale && mtime.Equal(s.timestamp)
	s.mu.RUnlock()
	if unchanged {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Recheck under the write lock; another caller may have rebuilt
	// while we waited.
	if !s.stale && mtime.Equal(s.timestamp) {
		return nil
	}

	s.log.Debug("Refresh: reloading tags from %s", s.path)

	root := tree.NewTag("", nil)
	if err := s.loader.LoadTags(s.path, root); err != nil {
		return fmt.Errorf("photofs: loading tags from %s: %w", s.path, err)
	}

	s.root = root
	s.timestamp = mtime
	s.stale = false
	s.reloads++

	s.log.Info("Refresh: loaded %d root tags from %s", root.Len(), s.path)
	return nil
}

// Locate resolves an absolute path against the current tree.
func (s *FileSource) Locate(path string) (tree.Item, error) {
	segments, err := BreakPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var current tree.Item = s.root
	for _, segment := range segments {
		tag, ok := current.(*tree.Tag)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}

		current, ok = tag.Get(segment)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
	}

	return current, nil
}

// Close stops the staleness watcher, if one was configured.
func (s *FileSource) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}

	return nil
}

// BreakPath splits an absolute path into its segments. The root path
// yields no segments. Paths without a leading slash are rejected with
// ErrInvalidPath.
func BreakPath(path string) ([]string, error) {
	if path == "" || path == "/" {
		return nil, nil
	}
	if path[0] != '/' {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	return strings.Split(path, "/")[1:], nil
}

// MakeTags ensures that every tag along path exists below root, and
// returns the deepest one. Intermediate tags are created as needed.
func MakeTags(root *tree.Tag, path string) (*tree.Tag, error) {
	segments, err := BreakPath(path)
	if err != nil {
		return nil, err
	}

	current := root
	for _, segment := range segments {
		if item, ok := current.Get(segment); ok {
			if tag, ok := item.(*tree.Tag); ok {
				current = tag
				continue
			}
		}

		current = tree.NewTag(segment, current)
	}

	return current, nil
}
