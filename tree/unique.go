package tree

import "fmt"

// MakeUnique derives a key not currently taken within a sibling set.
//
// The first candidate is base+ext. On collision the candidates
// "base (2)"+ext, "base (3)"+ext and so on are tried with an
// incrementing counter until a free key is found. The caller is
// responsible for inserting the returned key; taken is consulted but
// never mutated.
func MakeUnique(taken func(string) bool, base, ext string) string {
	key := base + ext
	for i := 2; taken(key); i++ {
		key = fmt.Sprintf("%s (%d)%s", base, i, ext)
	}

	return key
}
