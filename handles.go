package photofs

import (
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Handle identifies one open stream in the handle table. Handles are
// minted by the operation layer and carry no relation to any object
// identity.
type Handle string

// openFile pairs a readable stream with the lock serializing access to
// its position. Two concurrent reads on the same handle must not
// interleave their seek and read; reads on different handles proceed
// independently.
type openFile struct {
	mu     sync.Mutex
	stream io.ReadSeekCloser
	offset int64
}

// handleTable is the table of open files. The table mutex guards
// insertion and removal only; stream I/O is guarded per handle.
type handleTable struct {
	mu   sync.Mutex
	open map[Handle]*openFile
}

func newHandleTable() *handleTable {
	return &handleTable{
		open: make(map[Handle]*openFile),
	}
}

// Insert registers a stream and returns its new handle.
func (t *handleTable) Insert(stream io.ReadSeekCloser) Handle {
	handle := Handle(uuid.Must(uuid.NewV7()).String())

	t.mu.Lock()
	defer t.mu.Unlock()

	t.open[handle] = &openFile{stream: stream}
	return handle
}

// Get looks up an open file without removing it.
func (t *handleTable) Get(handle Handle) (*openFile, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	file, ok := t.open[handle]
	return file, ok
}

// Remove takes an open file out of the table. A missing handle is an
// error; double release must not silently succeed.
func (t *handleTable) Remove(handle Handle) (*openFile, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	file, ok := t.open[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInvalidOperation, handle)
	}

	delete(t.open, handle)
	return file, nil
}

// Len returns the number of open handles.
func (t *handleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.open)
}

// Drain removes and returns all open files. Used at teardown.
func (t *handleTable) Drain() []*openFile {
	t.mu.Lock()
	defer t.mu.Unlock()

	files := make([]*openFile, 0, len(t.open))
	for handle, file := range t.open {
		files = append(files, file)
		delete(t.open, handle)
	}

	return files
}

// ReadAt reads up to size bytes from the stream at the given offset.
// A read past the end of the stream returns no bytes and no error.
func (f *openFile) ReadAt(size int, offset int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.offset != offset {
		if _, err := f.stream.Seek(offset, io.SeekStart); err != nil {
			return nil, err
		}
		f.offset = offset
	}

	buffer := make([]byte, size)
	n, err := f.stream.Read(buffer)
	f.offset += int64(n)

	if err != nil && err != io.EOF {
		return nil, err
	}

	return buffer[:n], nil
}

// Close closes the underlying stream.
func (f *openFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.stream.Close()
}
