// Package tree holds the in-memory model of the virtual filesystem: a
// hierarchy of tags with images attached. Tags double as directories
// and images as files; the tree is rebuilt from a backend catalog and
// never mutated outside of a load.
package tree

import (
	"errors"
	"fmt"

	"github.com/tidwall/btree"
)

var (
	// ErrInvalidItem is returned when something that is neither an
	// image nor a tag is added to a tag.
	ErrInvalidItem = errors.New("photofs: item is neither an image nor a tag")

	// ErrTagConflict is returned when an image cannot be added
	// because its name is already used by a tag.
	ErrTagConflict = errors.New("photofs: name already used by a tag")
)

// Item is a node in the virtual tree: either an *Image or a *Tag.
type Item interface {
	isItem()
}

// Tag is a named, hierarchical container of images and child tags. A
// tag with an empty name and no parent acts as the root of a tree.
//
// An image may appear under several tags at once; each occurrence is
// an independent reference sharing the same backing location.
type Tag struct {
	name     string
	parent   *Tag
	children *btree.Map[string, Item]

	hasImage bool
	hasVideo bool
}

// NewTag creates a named tag. If parent is non-nil, the new tag is
// added to it, replacing any previous tag with the same name.
func NewTag(name string, parent *Tag) *Tag {
	tag := &Tag{
		name:     name,
		children: btree.NewMap[string, Item](0), // degree 0 = auto-optimize
	}
	if parent != nil {
		// Adding a tag cannot fail: a same-name tag is replaced and a
		// same-name image is displaced and re-keyed. Should Add ever
		// grow a failure mode for tags, losing it silently here would
		// let a load build a tree that quietly dropped media.
		if err := parent.Add(tag); err != nil {
			panic(err)
		}
	}

	return tag
}

func (t *Tag) isItem() {}

// Name returns the name of this tag.
func (t *Tag) Name() string {
	return t.name
}

// Parent returns the parent of this tag, or nil for a root.
func (t *Tag) Parent() *Tag {
	return t.parent
}

// HasImage reports whether the subtree rooted at this tag contains at
// least one still image.
func (t *Tag) HasImage() bool {
	return t.hasImage
}

// HasVideo reports whether the subtree rooted at this tag contains at
// least one video.
func (t *Tag) HasVideo() bool {
	return t.hasVideo
}

// Len returns the number of direct children.
func (t *Tag) Len() int {
	return t.children.Len()
}

// Get returns the direct child stored under name.
func (t *Tag) Get(name string) (Item, bool) {
	return t.children.Get(name)
}

// Each calls fn for every (name, child) pair in lexicographical key
// order until fn returns false.
func (t *Tag) Each(fn func(name string, item Item) bool) {
	t.children.Scan(fn)
}

// Names returns the names of all direct children in lexicographical
// order.
func (t *Tag) Names() []string {
	names := make([]string, 0, t.children.Len())
	t.children.Scan(func(name string, _ Item) bool {
		names = append(names, name)
		return true
	})

	return names
}

// Add adds an image or a child tag to this tag.
//
// An image is stored under a key derived from its name and extension;
// if that key is used by a tag the add fails, and if it is used by
// another image a fresh unique key is generated. A tag is stored under
// its name, replacing any previous tag; an image previously stored
// under that name is evicted and re-added so that it receives a new
// unique key instead of being lost.
//
// Add never leaves the tag partially mutated: validation happens
// before any child is inserted.
func (t *Tag) Add(item Item) error {
	switch item := item.(type) {
	case *Image:
		if existing, ok := t.children.Get(item.FileName()); ok {
			if _, isTag := existing.(*Tag); isTag {
				return fmt.Errorf("%w: %s", ErrTagConflict, item.FileName())
			}
		}

		t.addImage(item)
		return nil

	case *Tag:
		previous, _ := t.children.Get(item.name)
		t.children.Set(item.name, item)
		item.parent = t

		if item.hasImage {
			t.markImage()
		}
		if item.hasVideo {
			t.markVideo()
		}

		// An image that loses its slot to the tag is never dropped;
		// it is re-inserted under a fresh unique key. The conflict
		// check is skipped since the occupant is the tag that just
		// displaced it.
		if image, ok := previous.(*Image); ok {
			t.addImage(image)
		}

		return nil

	default:
		return fmt.Errorf("%w: %T", ErrInvalidItem, item)
	}
}

// addImage inserts an image under a free key derived from its name.
func (t *Tag) addImage(image *Image) {
	key := MakeUnique(func(key string) bool {
		_, taken := t.children.Get(key)
		return taken
	}, image.BaseName(), extensionSuffix(image))
	t.children.Set(key, image)

	if image.IsVideo() {
		t.markVideo()
	} else {
		t.markImage()
	}
}

// Remove deletes the direct child stored under name, if present.
func (t *Tag) Remove(name string) {
	t.children.Delete(name)
}

// Clear discards all children and resets the aggregation flags. Used
// by sources when rebuilding the tree from scratch.
func (t *Tag) Clear() {
	t.children.Clear()
	t.hasImage = false
	t.hasVideo = false
}

// markImage records that the subtree contains a still image,
// propagating through the parent chain.
func (t *Tag) markImage() {
	for tag := t; tag != nil && !tag.hasImage; tag = tag.parent {
		tag.hasImage = true
	}
}

// markVideo records that the subtree contains a video, propagating
// through the parent chain.
func (t *Tag) markVideo() {
	for tag := t; tag != nil && !tag.hasVideo; tag = tag.parent {
		tag.hasVideo = true
	}
}

func extensionSuffix(image *Image) string {
	if image.Extension() == "" {
		return ""
	}

	return "." + image.Extension()
}
