package catalog

import (
	"fmt"
	"strconv"
	"strings"
)

// InvalidRefError indicates an article reference that does not carry a
// numeric article id.
type InvalidRefError struct {
	Ref string
}

func (e *InvalidRefError) Error() string {
	return fmt.Sprintf("invalid article reference %q", e.Ref)
}

// ParseRef extracts the article id from a reference. A reference is either
// a bare id ("501") or a resource URI whose last path segment is the id
// ("https://shop.example/api/articles/501").
func ParseRef(ref string) (int64, error) {
	s := strings.TrimRight(strings.TrimSpace(ref), "/")
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		s = s[i+1:]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, &InvalidRefError{Ref: ref}
	}
	return id, nil
}
