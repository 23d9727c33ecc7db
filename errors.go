package photofs

import (
	"errors"

	"github.com/moses-palmer/photofs/source"
)

// Standard errors returned by the filesystem operation layer. Lookup
// errors are local to a single call; the tree and the handle table are
// never left partially mutated.
var (
	// ErrNotFound is returned when a path segment does not exist in
	// the current tree or filter view.
	ErrNotFound = source.ErrNotFound

	// ErrInvalidOperation is returned for operations attempted on
	// the wrong kind of item, such as readlink on a directory or
	// open on a tag.
	ErrInvalidOperation = errors.New("photofs: invalid operation for this item")

	// ErrInvalidHandle is returned by Read for handles absent from
	// the handle table.
	ErrInvalidHandle = errors.New("photofs: unknown file handle")

	// ErrReadOnly is returned when a caller requests write access.
	ErrReadOnly = errors.New("photofs: read-only filesystem")
)
