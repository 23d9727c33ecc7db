// Package photofs presents the tagged media library of an image
// cataloguing application as a read-only virtual filesystem: tags
// become directories and the images and videos beneath them become
// files. The kernel transport lives in the fuse subpackage; this
// package implements the logical operation semantics behind it.
package photofs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/moses-palmer/photofs/log"
	"github.com/moses-palmer/photofs/source"
	"github.com/moses-palmer/photofs/tree"
)

// writeBits are the permission bits cleared from every attribute
// reply; the filesystem is read-only by construction.
const writeBits = os.FileMode(0o222)

// Attr describes one tree item for an attribute query.
type Attr struct {
	Mode  os.FileMode
	Size  int64
	Nlink uint32
	Uid   uint32
	Gid   uint32
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// FileSystem implements the logical filesystem operations over one
// source. All operations are stateless given a path; the only state
// shared between calls is the open-handle table. Operations may be
// invoked concurrently.
type FileSystem struct {
	source   source.Source
	resolver *resolver
	handles  *handleTable
	options  *Options
	log      *log.Logger

	// dirAttr is the attribute template for every directory,
	// captured from the catalog's directory at construction.
	dirAttr Attr
}

// New creates a filesystem over the given source.
func New(src source.Source, opts ...Option) (*FileSystem, error) {
	options := newDefaultOptions()
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	fs := &FileSystem{
		source:   src,
		resolver: &resolver{source: src, filters: options.Filters},
		handles:  newHandleTable(),
		options:  options,
		log:      options.Logger,
	}

	// All directories report the attributes of the directory holding
	// the backend catalog, with write bits cleared.
	info, err := os.Lstat(filepath.Dir(src.Path()))
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", source.ErrConfig, filepath.Dir(src.Path()), err)
	}
	fs.dirAttr = attrOf(info)
	fs.dirAttr.Mode = os.ModeDir | (info.Mode().Perm() &^ writeBits)

	return fs, nil
}

// Getattr resolves path and returns its attributes. Directories use
// the reference attributes captured at construction; images report
// the live attributes of their backing file, with write bits always
// cleared and, in link mode, the type bit set to symbolic link.
func (fs *FileSystem) Getattr(path string) (Attr, error) {
	if err := fs.source.Refresh(); err != nil {
		return Attr{}, err
	}

	res, err := fs.resolver.Locate(path)
	if err != nil {
		return Attr{}, err
	}

	image, ok := res.Item.(*tree.Image)
	if !ok {
		return fs.dirAttr, nil
	}

	info, err := image.Stat()
	if err != nil {
		return Attr{}, fmt.Errorf("photofs: stat %s: %w", image.Location(), err)
	}

	attr := attrOf(info)
	attr.Mode = info.Mode() &^ writeBits
	if fs.options.Links {
		attr.Mode = os.ModeSymlink | (attr.Mode & os.ModePerm)
	}

	return attr, nil
}

// Readdir lists the names in the directory at path. The root lists
// the category views when filters are configured and the root tags
// otherwise; resolving to an image fails with ErrNotFound.
func (fs *FileSystem) Readdir(path string) ([]string, error) {
	if err := fs.source.Refresh(); err != nil {
		return nil, err
	}

	res, err := fs.resolver.Locate(path)
	if err != nil {
		return nil, err
	}

	return fs.resolver.Names(res)
}

// Readlink returns the backing location of the image at path. Any
// other resolution is an invalid operation.
func (fs *FileSystem) Readlink(path string) (string, error) {
	if err := fs.source.Refresh(); err != nil {
		return "", err
	}

	res, err := fs.resolver.Locate(path)
	if err != nil {
		return "", err
	}

	image, ok := res.Item.(*tree.Image)
	if !ok {
		return "", fmt.Errorf("%w: readlink %s", ErrInvalidOperation, path)
	}

	return image.Location(), nil
}

// Open opens a fresh stream to the image at path and registers it in
// the handle table. Write access is rejected; opening a directory is
// an invalid operation.
func (fs *FileSystem) Open(path string, flags int) (Handle, error) {
	if flags&(os.O_WRONLY|os.O_RDWR) != 0 {
		return "", fmt.Errorf("%w: open %s", ErrReadOnly, path)
	}

	if err := fs.source.Refresh(); err != nil {
		return "", err
	}

	res, err := fs.resolver.Locate(path)
	if err != nil {
		return "", err
	}

	image, ok := res.Item.(*tree.Image)
	if !ok {
		return "", fmt.Errorf("%w: open %s", ErrInvalidOperation, path)
	}

	stream, err := image.Open()
	if err != nil {
		return "", fmt.Errorf("photofs: open %s: %w", image.Location(), err)
	}

	handle := fs.handles.Insert(stream)
	fs.log.Debug("Open: %s -> %s", path, handle)
	return handle, nil
}

// Read reads up to size bytes at offset from an open handle. Reads
// past the end of the stream return no bytes and no error.
func (fs *FileSystem) Read(handle Handle, size int, offset int64) ([]byte, error) {
	file, ok := fs.handles.Get(handle)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidHandle, handle)
	}

	return file.ReadAt(size, offset)
}

// Release closes an open handle and removes it from the table. The
// caller must not release a handle with reads outstanding. Releasing
// an unknown handle is an error, so that handle bookkeeping bugs
// surface instead of passing silently.
func (fs *FileSystem) Release(handle Handle) error {
	file, err := fs.handles.Remove(handle)
	if err != nil {
		return err
	}

	fs.log.Debug("Release: %s", handle)
	return file.Close()
}

// OpenHandles returns the number of currently open handles.
func (fs *FileSystem) OpenHandles() int {
	return fs.handles.Len()
}

// Destroy tears the filesystem down: remaining handles are closed and
// the source is released. There is no state to flush.
func (fs *FileSystem) Destroy() error {
	var errs []error
	for _, file := range fs.handles.Drain() {
		if err := file.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := fs.source.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// attrOf copies the relevant fields of a stat result.
func attrOf(info os.FileInfo) Attr {
	attr := Attr{
		Mode:  info.Mode(),
		Size:  info.Size(),
		Nlink: 1,
		Mtime: info.ModTime(),
		Atime: info.ModTime(),
		Ctime: info.ModTime(),
	}

	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		attr.Nlink = uint32(st.Nlink)
		attr.Uid = st.Uid
		attr.Gid = st.Gid
		attr.Atime = time.Unix(st.Atim.Sec, st.Atim.Nsec)
		attr.Ctime = time.Unix(st.Ctim.Sec, st.Ctim.Nsec)
	}

	return attr
}
