package reader

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
)

// Discover walks the entries tree and returns the relative paths of all
// directories containing a primary document. A missing root or an empty
// tree is fatal: there is nothing meaningful to ingest.
func Discover(root string) ([]string, error) {
	var dirs []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != PrimaryDocument {
			return nil
		}
		rel, err := filepath.Rel(root, filepath.Dir(path))
		if err != nil {
			return err
		}
		dirs = append(dirs, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan entries root: %w", err)
	}

	if len(dirs) == 0 {
		return nil, fmt.Errorf("no entries found under %s", root)
	}

	sort.Strings(dirs)
	return dirs, nil
}
