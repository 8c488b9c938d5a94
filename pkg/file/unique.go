package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ExistsFunc reports whether a candidate path is already taken.
type ExistsFunc func(path string) bool

// Exists is the filesystem-backed ExistsFunc.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// UniqueName returns the first free path in dir for name. When name is taken
// the candidates are "1_<base><ext>", "2_<base><ext>", ... in that order.
func UniqueName(dir, name string, exists ExistsFunc) string {
	if exists == nil {
		exists = Exists
	}
	name = filepath.Base(name)
	candidate := filepath.Join(dir, name)
	if !exists(candidate) {
		return candidate
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%d_%s%s", counter, base, ext))
		if !exists(candidate) {
			return candidate
		}
	}
}
