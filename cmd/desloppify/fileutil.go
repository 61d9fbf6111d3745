package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/theRebelliousNerd/desloppify/internal/zone"
)

// discoverFiles walks root and returns every regular file's project-
// relative path, skipping version-control metadata and anything matching
// one of the project's configured exclude globs.
func discoverFiles(root string, exclude []string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			for _, pattern := range exclude {
				if zone.MatchGlob(pattern, rel) || zone.MatchGlob(strings.TrimSuffix(pattern, "/**"), rel) {
					return filepath.SkipDir
				}
			}
			return nil
		}
		for _, pattern := range exclude {
			if zone.MatchGlob(pattern, rel) {
				return nil
			}
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
