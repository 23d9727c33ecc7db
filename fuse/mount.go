// Package fuse mounts a photofs.FileSystem through the kernel FUSE
// transport. It is a thin translation layer: every kernel request is
// resolved by the logical operation layer, and its errors are mapped
// to errnos.
package fuse

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/moses-palmer/photofs"
	"github.com/moses-palmer/photofs/log"
	"github.com/moses-palmer/photofs/source"
)

// Options configures the FUSE mount.
type Options struct {
	// Mountpoint is the directory where the filesystem is mounted.
	// It is created if it does not exist.
	Mountpoint string

	// FileSystem provides the logical operations.
	FileSystem *photofs.FileSystem

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Logger receives diagnostic messages. If nil, a discarding
	// logger is used.
	Logger *log.Logger
}

// Mount mounts the filesystem at the configured mountpoint. The
// caller must call Unmount on the returned server when done.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.FileSystem == nil {
		return nil, fmt.Errorf("file system is required")
	}
	if options.Logger == nil {
		options.Logger = log.Discard()
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &dirNode{fs: options.FileSystem, path: "/", log: options.Logger}

	entryTimeout := 1 * time.Second
	attrTimeout := 1 * time.Second
	negativeTimeout := 100 * time.Millisecond

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:  "photofs",
			Name:    "photofs",
			Options: []string{"ro"},

			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting FUSE filesystem at %s: %w", options.Mountpoint, err)
	}

	options.Logger.Info("mounted at %s", options.Mountpoint)
	return server, nil
}

// dirNode is a directory in the virtual tree: the root, a category
// view or a tag.
type dirNode struct {
	gofuse.Inode
	fs   *photofs.FileSystem
	path string
	log  *log.Logger
}

var _ gofuse.InodeEmbedder = (*dirNode)(nil)
var _ gofuse.NodeLookuper = (*dirNode)(nil)
var _ gofuse.NodeReaddirer = (*dirNode)(nil)
var _ gofuse.NodeGetattrer = (*dirNode)(nil)

func (d *dirNode) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := d.fs.Getattr(d.path)
	if err != nil {
		return errno(err)
	}

	fillAttr(&out.Attr, attr)
	return 0
}

func (d *dirNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	childPath := join(d.path, name)

	attr, err := d.fs.Getattr(childPath)
	if err != nil {
		return nil, errno(err)
	}

	fillAttr(&out.Attr, attr)

	switch {
	case attr.Mode.IsDir():
		child := d.NewInode(ctx, &dirNode{fs: d.fs, path: childPath, log: d.log},
			gofuse.StableAttr{Mode: syscall.S_IFDIR})
		return child, 0

	case attr.Mode&os.ModeSymlink != 0:
		child := d.NewInode(ctx, &linkNode{fs: d.fs, path: childPath},
			gofuse.StableAttr{Mode: syscall.S_IFLNK})
		return child, 0

	default:
		child := d.NewInode(ctx, &fileNode{fs: d.fs, path: childPath, log: d.log},
			gofuse.StableAttr{Mode: syscall.S_IFREG})
		return child, 0
	}
}

func (d *dirNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	names, err := d.fs.Readdir(d.path)
	if err != nil {
		return nil, errno(err)
	}

	entries := make([]fuse.DirEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, fuse.DirEntry{Name: name})
	}

	return &sliceDirStream{entries: entries}, 0
}

// fileNode is an image or video presented as a regular file.
type fileNode struct {
	gofuse.Inode
	fs   *photofs.FileSystem
	path string
	log  *log.Logger
}

var _ gofuse.InodeEmbedder = (*fileNode)(nil)
var _ gofuse.NodeGetattrer = (*fileNode)(nil)
var _ gofuse.NodeOpener = (*fileNode)(nil)

func (f *fileNode) Getattr(ctx context.Context, _ gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	attr, err := f.fs.Getattr(f.path)
	if err != nil {
		return errno(err)
	}

	fillAttr(&out.Attr, attr)
	return 0
}

func (f *fileNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	handle, err := f.fs.Open(f.path, int(flags))
	if err != nil {
		f.log.Error("open %s: %v", f.path, err)
		return nil, 0, errno(err)
	}

	return &fileHandle{fs: f.fs, handle: handle}, 0, 0
}

// fileHandle forwards reads and the release to the handle table.
type fileHandle struct {
	fs     *photofs.FileSystem
	handle photofs.Handle
}

var _ gofuse.FileReader = (*fileHandle)(nil)
var _ gofuse.FileReleaser = (*fileHandle)(nil)

func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	data, err := h.fs.Read(h.handle, len(dest), off)
	if err != nil {
		return nil, errno(err)
	}

	return fuse.ReadResultData(data), 0
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	if err := h.fs.Release(h.handle); err != nil {
		return errno(err)
	}

	return 0
}

// linkNode is an image presented as a symbolic link to its backing
// file.
type linkNode struct {
	gofuse.Inode
	fs   *photofs.FileSystem
	path string
}

var _ gofuse.InodeEmbedder = (*linkNode)(nil)
var _ gofuse.NodeReadlinker = (*linkNode)(nil)

func (l *linkNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := l.fs.Readlink(l.path)
	if err != nil {
		return nil, errno(err)
	}

	return []byte(target), 0
}

// sliceDirStream implements fs.DirStream from a slice of entries.
type sliceDirStream struct {
	entries []fuse.DirEntry
	index   int
}

func (s *sliceDirStream) HasNext() bool {
	return s.index < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	if s.index >= len(s.entries) {
		return fuse.DirEntry{}, syscall.EINVAL
	}
	entry := s.entries[s.index]
	s.index++
	return entry, 0
}

func (s *sliceDirStream) Close() {}

// errno maps operation layer errors to errnos.
func errno(err error) syscall.Errno {
	switch {
	case errors.Is(err, photofs.ErrNotFound):
		return syscall.ENOENT
	case errors.Is(err, photofs.ErrInvalidOperation):
		return syscall.EINVAL
	case errors.Is(err, photofs.ErrInvalidHandle):
		return syscall.EBADF
	case errors.Is(err, photofs.ErrReadOnly):
		return syscall.EROFS
	case errors.Is(err, source.ErrInvalidPath):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

// fillAttr converts a photofs attribute reply.
func fillAttr(out *fuse.Attr, attr photofs.Attr) {
	out.Mode = fuseMode(attr.Mode)
	out.Size = uint64(attr.Size)
	out.Nlink = attr.Nlink
	out.Owner = fuse.Owner{Uid: attr.Uid, Gid: attr.Gid}
	out.SetTimes(&attr.Atime, &attr.Mtime, &attr.Ctime)
	out.Blocks = (out.Size + 511) / 512
}

// fuseMode converts an os.FileMode to the kernel representation.
func fuseMode(mode os.FileMode) uint32 {
	bits := uint32(mode.Perm())
	switch {
	case mode.IsDir():
		bits |= syscall.S_IFDIR
	case mode&os.ModeSymlink != 0:
		bits |= syscall.S_IFLNK
	default:
		bits |= syscall.S_IFREG
	}

	return bits
}

// join appends a name to a virtual path.
func join(parent, name string) string {
	return path.Join(parent, name)
}
