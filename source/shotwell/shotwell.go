// Package shotwell loads images and videos from a Shotwell photo
// library. The catalog is Shotwell's photo.db SQLite database, read
// through the pure Go driver so the binary builds without CGO.
package shotwell

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/moses-palmer/photofs/source"
	"github.com/moses-palmer/photofs/tree"
)

// ID prefixes used in TagTable.photo_id_list. Entries starting with a
// digit are legacy decimal photo IDs; later Shotwell versions prefix
// hexadecimal IDs with a per-table header.
const (
	photoHeader = "thumb"
	videoHeader = "video-"
)

func init() {
	source.Register("shotwell", func(cfg source.Config) (source.Source, error) {
		return source.NewFileSource(&Loader{dateFormat: cfg.DateFormat}, cfg)
	})
}

// Loader reads tags and media records from a Shotwell database.
type Loader struct {
	dateFormat string
}

// DefaultLocation looks for photo.db in the XDG data directories.
func (l *Loader) DefaultLocation() (string, error) {
	for _, dir := range xdgDataDirs() {
		path := filepath.Join(dir, "shotwell", "data", "photo.db")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("no Shotwell database found")
}

// LoadTags reads the photo, video and tag tables and populates root.
func (l *Loader) LoadTags(path string, root *tree.Tag) error {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	photos, err := l.loadMedia(db, "phototable", false)
	if err != nil {
		return err
	}
	videos, err := l.loadMedia(db, "videotable", true)
	if err != nil {
		return err
	}

	return l.loadTagTable(db, root, photos, videos)
}

// loadMedia reads one media table into a map from row ID to image.
// Records whose backing file is missing are skipped.
func (l *Loader) loadMedia(db *sql.DB, table string, isVideo bool) (map[int64]*tree.Image, error) {
	rows, err := db.Query(fmt.Sprintf(
		"SELECT id, filename, exposure_time, title FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	defer rows.Close()

	images := make(map[int64]*tree.Image)
	for rows.Next() {
		var (
			id           int64
			filename     string
			exposureTime sql.NullInt64
			title        sql.NullString
		)
		if err := rows.Scan(&id, &filename, &exposureTime, &title); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", table, err)
		}

		// Ignore records whose file is unreadable.
		if _, err := os.Lstat(filename); err != nil {
			continue
		}

		images[id] = tree.NewImage(
			title.String,
			filename,
			time.Unix(exposureTime.Int64, 0),
			isVideo,
			l.dateFormat)
	}

	return images, rows.Err()
}

// loadTagTable reads TagTable and attaches media to tags. Shotwell
// lists every tagged media ID on the deepest tag and all its
// ancestors, so an image added to a tag is removed from the direct
// listings of the ancestor tags to avoid duplicated entries.
func (l *Loader) loadTagTable(db *sql.DB, root *tree.Tag, photos, videos map[int64]*tree.Image) error {
	rows, err := db.Query(
		"SELECT name, photo_id_list FROM tagtable ORDER BY name")
	if err != nil {
		return fmt.Errorf("reading tagtable: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name   string
			idList sql.NullString
		)
		if err := rows.Scan(&name, &idList); err != nil {
			return fmt.Errorf("scanning tagtable: %w", err)
		}

		// Unused tags have an empty media list.
		if idList.String == "" {
			continue
		}

		// Hierarchical tag names start with a slash.
		path := name
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}

		tag, err := source.MakeTags(root, path)
		if err != nil {
			return err
		}

		for _, id := range strings.Split(idList.String, ",") {
			// The list carries a trailing comma.
			if id == "" {
				continue
			}

			image := resolveID(id, photos, videos)
			if image == nil {
				continue
			}

			removeFromAncestors(tag, image.Location())

			// Each tag occurrence gets its own record instance
			// sharing the backing location.
			occurrence := *image
			if err := tag.Add(&occurrence); err != nil {
				return err
			}
		}
	}

	return rows.Err()
}

// resolveID maps one entry of photo_id_list to a loaded image. Unknown
// or stale IDs yield nil.
func resolveID(id string, photos, videos map[int64]*tree.Image) *tree.Image {
	if id[0] >= '0' && id[0] <= '9' {
		// Legacy decimal IDs always reference the photo table.
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil
		}
		return photos[n]
	}

	for header, images := range map[string]map[int64]*tree.Image{
		photoHeader: photos,
		videoHeader: videos,
	} {
		if !strings.HasPrefix(id, header) {
			continue
		}
		n, err := strconv.ParseInt(id[len(header):], 16, 64)
		if err != nil {
			return nil
		}
		return images[n]
	}

	return nil
}

// removeFromAncestors drops direct references to the image at location
// from every ancestor of tag, so that the image remains listed only
// under the deepest tag that names it.
func removeFromAncestors(tag *tree.Tag, location string) {
	for parent := tag.Parent(); parent != nil; parent = parent.Parent() {
		var stale []string
		parent.Each(func(name string, item tree.Item) bool {
			if image, ok := item.(*tree.Image); ok && image.Location() == location {
				stale = append(stale, name)
			}
			return true
		})

		for _, name := range stale {
			parent.Remove(name)
		}
	}
}

// xdgDataDirs returns the XDG data directories in precedence order.
func xdgDataDirs() []string {
	var dirs []string

	if home := os.Getenv("XDG_DATA_HOME"); home != "" {
		dirs = append(dirs, home)
	} else if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".local", "share"))
	}

	extra := os.Getenv("XDG_DATA_DIRS")
	if extra == "" {
		extra = "/usr/local/share:/usr/share"
	}
	dirs = append(dirs, strings.Split(extra, ":")...)

	return dirs
}
