package source

import (
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/moses-palmer/photofs/log"
)

// watcher flags the source as stale the moment the backend catalog is
// written, so that the next lookup rebuilds the tree even when the
// modification time comparison alone would miss the change.
//
// The parent directory is watched rather than the catalog itself:
// applications like Shotwell replace the database atomically, which
// would otherwise drop the watch on the old inode.
type watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	done      chan struct{}
	log       *log.Logger
}

func newWatcher(path string, markStale func(), logger *log.Logger) (*watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("photofs: creating catalog watcher: %w", err)
	}

	if err := fsWatcher.Add(filepath.Dir(path)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("photofs: watching %s: %w", filepath.Dir(path), err)
	}

	w := &watcher{
		fsWatcher: fsWatcher,
		path:      path,
		done:      make(chan struct{}),
		log:       logger,
	}

	go w.run(markStale)
	return w, nil
}

func (w *watcher) run(markStale func()) {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.log.Debug("watcher: catalog changed (%s)", event.Op)
				markStale()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher: %v", err)
		}
	}
}

func (w *watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}
