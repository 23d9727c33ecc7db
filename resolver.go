package photofs

import (
	"fmt"
	"strings"

	"github.com/moses-palmer/photofs/source"
	"github.com/moses-palmer/photofs/tree"
)

// Filter is a named category view over the tag tree, such as "Photos"
// or "Videos". The predicate is applied to images; a tag is visible in
// the view when any image in its subtree is.
type Filter struct {
	Name    string
	Include func(*tree.Image) bool
}

// PhotoFilter is a view containing everything that is not a video.
func PhotoFilter(name string) Filter {
	return Filter{
		Name:    name,
		Include: func(image *tree.Image) bool { return !image.IsVideo() },
	}
}

// VideoFilter is a view containing only videos.
func VideoFilter(name string) Filter {
	return Filter{
		Name:    name,
		Include: func(image *tree.Image) bool { return image.IsVideo() },
	}
}

// Resolution is the result of resolving a filesystem path.
type Resolution struct {
	// Item is the resolved image or tag. It is nil only for the
	// virtual root directory that lists the category views.
	Item tree.Item

	// Filter is the category view the path runs through, or nil
	// when lookups are unfiltered.
	Filter *Filter
}

// resolver breaks filesystem paths into the tag tree, routing the
// first path segment through the configured category views.
type resolver struct {
	source  source.Source
	filters []Filter
}

// Locate resolves an absolute path. With no filters configured, the
// path is resolved directly against the source. With filters, the
// first segment must name a view and the remainder is resolved and
// checked against the view's predicate.
func (r *resolver) Locate(path string) (Resolution, error) {
	if len(r.filters) == 0 {
		item, err := r.source.Locate(path)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{Item: item}, nil
	}

	first, rest, err := SplitPath(path)
	if err != nil {
		return Resolution{}, err
	}
	if first == "" {
		return Resolution{}, nil
	}

	filter := r.filter(first)
	if filter == nil {
		return Resolution{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	item, err := r.source.Locate("/" + rest)
	if err != nil {
		return Resolution{}, err
	}

	if rest != "" && !accept(filter, item) {
		return Resolution{}, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	return Resolution{Item: item, Filter: filter}, nil
}

// Names lists the directory entries for a resolution. The virtual
// root lists the view names; a tag lists the children visible in the
// active view.
func (r *resolver) Names(res Resolution) ([]string, error) {
	if res.Item == nil {
		names := make([]string, 0, len(r.filters))
		for _, filter := range r.filters {
			names = append(names, filter.Name)
		}
		return names, nil
	}

	tag, ok := res.Item.(*tree.Tag)
	if !ok {
		return nil, ErrNotFound
	}

	var names []string
	tag.Each(func(name string, item tree.Item) bool {
		if res.Filter == nil || accept(res.Filter, item) {
			names = append(names, name)
		}
		return true
	})

	return names, nil
}

func (r *resolver) filter(name string) *Filter {
	for i := range r.filters {
		if r.filters[i].Name == name {
			return &r.filters[i]
		}
	}

	return nil
}

// accept reports whether an item is visible in a view: an image when
// the predicate accepts it, a tag when any image in its subtree is
// accepted.
func accept(filter *Filter, item tree.Item) bool {
	switch item := item.(type) {
	case *tree.Image:
		return filter.Include(item)

	case *tree.Tag:
		found := false
		item.Each(func(_ string, child tree.Item) bool {
			found = accept(filter, child)
			return !found
		})
		return found

	default:
		return false
	}
}

// SplitPath splits an absolute path into its first segment and the
// remainder, either of which may be empty. Paths without a leading
// slash are a programming error and rejected loudly.
func SplitPath(path string) (string, string, error) {
	if path == "" || path[0] != '/' {
		return "", "", fmt.Errorf("%w: %q", source.ErrInvalidPath, path)
	}

	first, rest, _ := strings.Cut(path[1:], "/")
	return first, rest, nil
}
