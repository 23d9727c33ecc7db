package tree

import (
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultDateFormat is used to derive a file name for images that
// carry no title.
const DefaultDateFormat = "2006-01-02, 15.04"

// videoExtensions covers container formats for which the platform MIME
// database may have no entry.
var videoExtensions = map[string]bool{
	"3gp":  true,
	"avi":  true,
	"flv":  true,
	"m4v":  true,
	"mkv":  true,
	"mov":  true,
	"mp4":  true,
	"mpeg": true,
	"mpg":  true,
	"ogv":  true,
	"webm": true,
	"wmv":  true,
}

// Image is a single image or video in the virtual tree. It is
// immutable once constructed; file attributes and byte streams are
// fetched from the backing file on every request, since the underlying
// file may change between calls.
type Image struct {
	title      string
	location   string
	extension  string
	timestamp  time.Time
	isVideo    bool
	dateFormat string
}

// NewImage creates an image backed by the file at location. The
// extension is derived from location and stored lower case without the
// leading dot. An empty dateFormat falls back to DefaultDateFormat.
func NewImage(title, location string, timestamp time.Time, isVideo bool, dateFormat string) *Image {
	if dateFormat == "" {
		dateFormat = DefaultDateFormat
	}

	return &Image{
		title:      title,
		location:   location,
		extension:  strings.ToLower(strings.TrimPrefix(filepath.Ext(location), ".")),
		timestamp:  timestamp,
		isVideo:    isVideo,
		dateFormat: dateFormat,
	}
}

// InferVideo reports whether the file at location is a video, judged
// by the MIME type of its extension. Extensions the platform MIME
// database does not know are checked against a fixed table of common
// video containers.
func InferVideo(location string) bool {
	ext := strings.ToLower(filepath.Ext(location))
	if mimeType := mime.TypeByExtension(ext); mimeType != "" {
		return strings.HasPrefix(mimeType, "video/")
	}

	return videoExtensions[strings.TrimPrefix(ext, ".")]
}

func (i *Image) isItem() {}

// Title returns the title of this image, which may be empty.
func (i *Image) Title() string {
	return i.title
}

// Location returns the path of the backing file.
func (i *Image) Location() string {
	return i.location
}

// Extension returns the lower case file extension without the leading
// dot.
func (i *Image) Extension() string {
	return i.extension
}

// Timestamp returns the point in time when this image or video was
// created.
func (i *Image) Timestamp() time.Time {
	return i.timestamp
}

// IsVideo reports whether this image is a video.
func (i *Image) IsVideo() bool {
	return i.isVideo
}

// BaseName returns the name used for this image in the tree, without
// the extension. Images without a title are named after their
// timestamp.
func (i *Image) BaseName() string {
	if i.title != "" {
		return i.title
	}

	return i.timestamp.Format(i.dateFormat)
}

// FileName returns the complete file name, extension included.
func (i *Image) FileName() string {
	if i.extension == "" {
		return i.BaseName()
	}

	return i.BaseName() + "." + i.extension
}

// Stat returns the current attributes of the backing file. The result
// is never cached; the file may change between calls.
func (i *Image) Stat() (os.FileInfo, error) {
	return os.Lstat(i.location)
}

// Open opens a fresh readable, seekable stream to the backing file.
func (i *Image) Open() (io.ReadSeekCloser, error) {
	return os.Open(i.location)
}
