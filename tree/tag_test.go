package tree

import (
	"errors"
	"testing"
	"time"
)

func newTestImage(title, location string, isVideo bool) *Image {
	return NewImage(title, location, time.Date(2020, 6, 1, 12, 30, 0, 0, time.UTC), isVideo, "")
}

func TestAddImageKeysAreUnique(t *testing.T) {
	tag := NewTag("Holiday", nil)

	if err := tag.Add(newTestImage("Sunset", "/media/a.jpg", false)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := tag.Add(newTestImage("Sunset", "/media/b.jpg", false)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, ok := tag.Get("Sunset.jpg"); !ok {
		t.Error("Expected 'Sunset.jpg' to be present")
	}
	if _, ok := tag.Get("Sunset (2).jpg"); !ok {
		t.Error("Expected 'Sunset (2).jpg' to be present")
	}
	if tag.Len() != 2 {
		t.Errorf("Expected 2 children, got %d", tag.Len())
	}
}

func TestAddImageNamedAfterTimestamp(t *testing.T) {
	tag := NewTag("Holiday", nil)

	if err := tag.Add(newTestImage("", "/media/a.jpg", false)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, ok := tag.Get("2020-06-01, 12.30.jpg"); !ok {
		t.Errorf("Expected timestamp-derived key, got %v", tag.Names())
	}
}

func TestAddImageOntoTagNameFails(t *testing.T) {
	tag := NewTag("Holiday", nil)
	NewTag("Sunset.jpg", tag)

	err := tag.Add(newTestImage("Sunset", "/media/a.jpg", false))
	if !errors.Is(err, ErrTagConflict) {
		t.Errorf("Expected ErrTagConflict, got %v", err)
	}
	if tag.Len() != 1 {
		t.Errorf("Expected the tag to be unchanged, got %d children", tag.Len())
	}
}

func TestAddTagReplacesTag(t *testing.T) {
	tag := NewTag("Holiday", nil)
	NewTag("Beach", tag)
	replacement := NewTag("Beach", tag)

	item, ok := tag.Get("Beach")
	if !ok {
		t.Fatal("Expected 'Beach' to be present")
	}
	if item != replacement {
		t.Error("Expected the new tag to replace the old one")
	}
	if tag.Len() != 1 {
		t.Errorf("Expected 1 child, got %d", tag.Len())
	}
}

func TestAddTagEvictsImageAndReaddsIt(t *testing.T) {
	tag := NewTag("Holiday", nil)
	if err := tag.Add(newTestImage("Beach", "/media/beach", false)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, ok := tag.Get("Beach"); !ok {
		t.Fatalf("Expected extensionless image under 'Beach', got %v", tag.Names())
	}

	// A tag named like the image takes the slot; the image must
	// survive under a fresh unique key.
	NewTag("Beach", tag)

	item, ok := tag.Get("Beach")
	if !ok {
		t.Fatal("Expected 'Beach' to be present")
	}
	if _, isTag := item.(*Tag); !isTag {
		t.Errorf("Expected 'Beach' to be a tag, got %T", item)
	}

	moved, ok := tag.Get("Beach (2)")
	if !ok {
		t.Fatalf("Expected the image to be re-added as 'Beach (2)', got %v", tag.Names())
	}
	if _, isImage := moved.(*Image); !isImage {
		t.Errorf("Expected 'Beach (2)' to be an image, got %T", moved)
	}
}

func TestAddTagOverImageReportsNoConflict(t *testing.T) {
	tag := NewTag("Holiday", nil)
	if err := tag.Add(newTestImage("Clip", "/media/clip", true)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// Displacing the image must not be reported as a conflict; only a
	// fresh image add against an existing tag is.
	if err := tag.Add(NewTag("Clip", nil)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	names := tag.Names()
	expected := []string{"Clip", "Clip (2)"}
	if len(names) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, names)
		}
	}

	if !tag.HasVideo() {
		t.Error("Expected HasVideo to survive the displacement")
	}
}

func TestAddNilItemFails(t *testing.T) {
	tag := NewTag("Holiday", nil)

	if err := tag.Add(nil); !errors.Is(err, ErrInvalidItem) {
		t.Errorf("Expected ErrInvalidItem, got %v", err)
	}
}

func TestAggregationFlagsPropagate(t *testing.T) {
	root := NewTag("", nil)
	travel := NewTag("Travel", root)
	beach := NewTag("Beach", travel)

	if root.HasImage() || root.HasVideo() {
		t.Fatal("Expected empty tree to aggregate nothing")
	}

	if err := beach.Add(newTestImage("Clip", "/media/clip.mp4", true)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	for _, tag := range []*Tag{beach, travel, root} {
		if !tag.HasVideo() {
			t.Errorf("Expected HasVideo on %q", tag.Name())
		}
		if tag.HasImage() {
			t.Errorf("Expected no HasImage on %q", tag.Name())
		}
	}

	if err := travel.Add(newTestImage("Dune", "/media/dune.jpg", false)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if beach.HasImage() {
		t.Error("Expected the sibling subtree to be unaffected")
	}
	if !travel.HasImage() || !root.HasImage() {
		t.Error("Expected HasImage to propagate to the root")
	}
}

func TestAddTagMergesAggregation(t *testing.T) {
	loose := NewTag("Loose", nil)
	if err := loose.Add(newTestImage("Clip", "/media/clip.mp4", true)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	root := NewTag("", nil)
	if err := root.Add(loose); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if !root.HasVideo() {
		t.Error("Expected HasVideo to merge when attaching a subtree")
	}
	if loose.Parent() != root {
		t.Error("Expected the parent to be updated")
	}
}

func TestNamesAreSorted(t *testing.T) {
	tag := NewTag("Holiday", nil)
	for _, name := range []string{"c", "a", "b"} {
		if err := tag.Add(newTestImage(name, "/media/"+name+".jpg", false)); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	names := tag.Names()
	expected := []string{"a.jpg", "b.jpg", "c.jpg"}
	for i, name := range expected {
		if names[i] != name {
			t.Errorf("Expected %q at index %d, got %q", name, i, names[i])
		}
	}
}

func TestClearResetsFlags(t *testing.T) {
	tag := NewTag("Holiday", nil)
	if err := tag.Add(newTestImage("Clip", "/media/clip.mp4", true)); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	tag.Clear()

	if tag.Len() != 0 {
		t.Errorf("Expected no children, got %d", tag.Len())
	}
	if tag.HasVideo() {
		t.Error("Expected HasVideo to be reset")
	}
}
