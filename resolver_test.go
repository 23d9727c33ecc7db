package photofs

import (
	"errors"
	"testing"

	"github.com/moses-palmer/photofs/source"
)

func TestSplitPath(t *testing.T) {
	for _, tc := range []struct {
		path  string
		first string
		rest  string
	}{
		{"/", "", ""},
		{"/Photos", "Photos", ""},
		{"/Photos/Travel", "Photos", "Travel"},
		{"/Photos/Travel/Beach", "Photos", "Travel/Beach"},
	} {
		first, rest, err := SplitPath(tc.path)
		if err != nil {
			t.Fatalf("SplitPath(%q) failed: %v", tc.path, err)
		}
		if first != tc.first || rest != tc.rest {
			t.Errorf("SplitPath(%q) = %q, %q; expected %q, %q",
				tc.path, first, rest, tc.first, tc.rest)
		}
	}
}

func TestSplitPathRejectsRelativePaths(t *testing.T) {
	for _, path := range []string{"", "Photos", "Photos/Travel"} {
		if _, _, err := SplitPath(path); !errors.Is(err, source.ErrInvalidPath) {
			t.Errorf("SplitPath(%q): expected ErrInvalidPath, got %v", path, err)
		}
	}
}
