package shotwell

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/moses-palmer/photofs/source"
	"github.com/moses-palmer/photofs/tree"
)

// newTestCatalog creates a Shotwell database with two photos, one
// video and a small tag hierarchy. The media files are created on
// disk so that loading does not skip them.
func newTestCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	media := map[string]string{
		"sunset.jpg": "sunset",
		"dune.jpg":   "dune",
		"waves.mp4":  "waves",
	}
	for name, content := range media {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}

	catalog := filepath.Join(dir, "photo.db")
	db, err := sql.Open("sqlite", catalog)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	statements := []string{
		`CREATE TABLE phototable (
			id INTEGER PRIMARY KEY,
			filename TEXT,
			exposure_time INTEGER,
			title TEXT
		)`,
		`CREATE TABLE videotable (
			id INTEGER PRIMARY KEY,
			filename TEXT,
			exposure_time INTEGER,
			title TEXT
		)`,
		`CREATE TABLE tagtable (
			id INTEGER PRIMARY KEY,
			name TEXT,
			photo_id_list TEXT
		)`,
	}
	for _, statement := range statements {
		if _, err := db.Exec(statement); err != nil {
			t.Fatalf("Exec failed: %v", err)
		}
	}

	if _, err := db.Exec(
		`INSERT INTO phototable (id, filename, exposure_time, title) VALUES
			(1, ?, 1591014600, 'Sunset'),
			(2, ?, 1591014700, 'Dune')`,
		filepath.Join(dir, "sunset.jpg"),
		filepath.Join(dir, "dune.jpg")); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO videotable (id, filename, exposure_time, title) VALUES
			(1, ?, 1591014800, 'Waves')`,
		filepath.Join(dir, "waves.mp4")); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO tagtable (id, name, photo_id_list) VALUES
			(1, '/Travel', 'thumb0000000000000001,video-0000000000000001,'),
			(2, '/Travel/Beach', 'thumb0000000000000001,'),
			(3, '/Travel/Ghost', 'thumb00000000000000ff,'),
			(4, 'Legacy', '2,'),
			(5, 'Unused', ''),
			(6, 'AlsoUnused', NULL)`); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}

	return catalog
}

func newTestSource(t *testing.T) source.Source {
	t.Helper()

	s, err := source.Open("shotwell", source.Config{Database: newTestCatalog(t)})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	return s
}

func TestLoadBuildsTagHierarchy(t *testing.T) {
	s := newTestSource(t)

	item, err := s.Locate("/Travel/Beach")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	beach, ok := item.(*tree.Tag)
	if !ok {
		t.Fatalf("Expected a tag, got %T", item)
	}
	if _, ok := beach.Get("Sunset.jpg"); !ok {
		t.Errorf("Expected 'Sunset.jpg' under /Travel/Beach, got %v", beach.Names())
	}
}

func TestDeepestTagWins(t *testing.T) {
	s := newTestSource(t)

	item, err := s.Locate("/Travel")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	travel := item.(*tree.Tag)

	// The photo is listed on /Travel and /Travel/Beach; only the
	// deepest tag keeps it.
	if _, ok := travel.Get("Sunset.jpg"); ok {
		t.Error("Expected 'Sunset.jpg' to be removed from /Travel")
	}
	if _, ok := travel.Get("Waves.mp4"); !ok {
		t.Errorf("Expected 'Waves.mp4' under /Travel, got %v", travel.Names())
	}
}

func TestVideosAreFlagged(t *testing.T) {
	s := newTestSource(t)

	item, err := s.Locate("/Travel/Waves.mp4")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	video, ok := item.(*tree.Image)
	if !ok {
		t.Fatalf("Expected an image, got %T", item)
	}
	if !video.IsVideo() {
		t.Error("Expected the video table entry to be flagged as video")
	}

	if !s.Root().HasVideo() {
		t.Error("Expected HasVideo to reach the root")
	}
}

func TestLegacyDecimalIDs(t *testing.T) {
	s := newTestSource(t)

	item, err := s.Locate("/Legacy/Dune.jpg")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if _, ok := item.(*tree.Image); !ok {
		t.Fatalf("Expected an image, got %T", item)
	}
}

func TestUnknownIDsAreIgnored(t *testing.T) {
	s := newTestSource(t)

	item, err := s.Locate("/Travel/Ghost")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}

	ghost := item.(*tree.Tag)
	if ghost.Len() != 0 {
		t.Errorf("Expected the tag to be empty, got %v", ghost.Names())
	}
}

func TestUnusedTagsAreSkipped(t *testing.T) {
	s := newTestSource(t)

	for _, path := range []string{"/Unused", "/AlsoUnused"} {
		if _, err := s.Locate(path); !errors.Is(err, source.ErrNotFound) {
			t.Errorf("Expected ErrNotFound for %q, got %v", path, err)
		}
	}
}

func TestMissingMediaFilesAreSkipped(t *testing.T) {
	catalog := newTestCatalog(t)

	db, err := sql.Open("sqlite", catalog)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO phototable (id, filename, exposure_time, title)
			VALUES (3, '/no/such/file.jpg', 1591014900, 'Missing')`); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if _, err := db.Exec(
		`UPDATE tagtable SET photo_id_list = 'thumb0000000000000003,'
			WHERE name = '/Travel/Ghost'`); err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	db.Close()

	s, err := source.Open("shotwell", source.Config{Database: catalog})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	item, err := s.Locate("/Travel/Ghost")
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if item.(*tree.Tag).Len() != 0 {
		t.Error("Expected records with missing files to be skipped")
	}
}
