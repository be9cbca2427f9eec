// Package ingest implements the walk → hash → chunk → embed → persist
// pipeline that reconciles a collection directory with the Store.
package ingest

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// skipDirs are directories never walked during ingest.
var skipDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	"vendor":       true,
}

// enumerate walks root and returns the paths of files matching glob,
// excluding hidden directories and the fixed skip-list, in deterministic
// (lexical) order. Returned paths are relative to root.
func enumerate(root, glob string) ([]string, error) {
	var matches []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil {
			return rerr
		}
		if d.IsDir() {
			if rel != "." && (skipDirs[d.Name()] || isHidden(d.Name())) {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) {
			return nil
		}
		ok, merr := filepath.Match(glob, d.Name())
		if merr == nil && ok {
			matches = append(matches, rel)
			return nil
		}
		// A leading "**/" matches files at any depth, including root.
		if rest, found := strings.CutPrefix(glob, "**/"); found {
			if ok3, _ := filepath.Match(rest, d.Name()); ok3 {
				matches = append(matches, rel)
				return nil
			}
		}
		// Also allow glob to match the full relative path, for patterns
		// with a directory part such as "docs/*.md". filepath.Match treats
		// any other "**" like "*", spanning a single path segment.
		if ok2, _ := filepath.Match(glob, rel); ok2 {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
