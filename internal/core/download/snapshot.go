package download

import (
	"io/fs"
	"path/filepath"
	"sort"
)

// snapshotFiles returns the set of regular files under dir, keyed by path
// relative to dir. A missing or unreadable directory yields an empty set.
func snapshotFiles(dir string) map[string]struct{} {
	files := make(map[string]struct{})
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, relErr := filepath.Rel(dir, path); relErr == nil {
			files[rel] = struct{}{}
		}
		return nil
	})
	return files
}

// diffFiles returns the files present in after but not in before, sorted.
func diffFiles(before, after map[string]struct{}) []string {
	var added []string
	for f := range after {
		if _, ok := before[f]; !ok {
			added = append(added, f)
		}
	}
	sort.Strings(added)
	return added
}
